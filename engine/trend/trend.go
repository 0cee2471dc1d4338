// Package trend groups stored posts by a normalized content hash and
// classifies each problem group as emerging or declining across a sliding
// window.
package trend

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/store"
)

// Classification thresholds. A group is emerging when more than
// EmergingRatio of its sightings fall inside the window; it is declining
// when sightings before the window outnumber those inside it.
const (
	DefaultWindow      = 30 * 24 * time.Hour
	DefaultLookback    = 180 * 24 * time.Hour
	MinOccurrences     = 3
	EmergingRatio      = 0.5
	normalizedMaxWords = 20
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "been": true, "will": true, "would": true,
	"there": true, "their": true, "what": true, "about": true, "which": true,
	"when": true, "make": true, "like": true, "just": true, "some": true,
	"how": true, "who": true, "its": true, "also": true, "into": true,
	"than": true, "then": true, "them": true, "these": true, "does": true,
	"doing": true, "any": true, "your": true, "more": true, "most": true,
	"other": true, "such": true, "only": true, "over": true, "very": true,
}

// Normalize reduces text to a canonical bag of words: lowercased, stripped
// of punctuation and stop words, words longer than two characters, sorted,
// truncated to the first 20. Reworded posts about the same problem collapse
// to the same string.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var words []string
	for _, w := range strings.Fields(b.String()) {
		if len(w) <= 2 || stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	sort.Strings(words)
	if len(words) > normalizedMaxWords {
		words = words[:normalizedMaxWords]
	}
	return strings.Join(words, " ")
}

// Hash returns the group key for a post's text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Group is one recurring problem: all posts whose normalized text hashes
// identically, with sighting counts split at the window boundary.
type Group struct {
	Hash    string              `json:"hash"`
	Label   string              `json:"label"`
	Total   int                 `json:"total"`
	Recent  int                 `json:"recent"`
	Past    int                 `json:"past"`
	Sources []domain.SourceName `json:"sources"`
	Posts   []domain.Post       `json:"posts"`
}

// Snapshot is the result of one detection pass.
type Snapshot struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Window      time.Duration `json:"window"`
	Emerging    []Group       `json:"emerging"`
	Declining   []Group       `json:"declining"`
	Groups      int           `json:"groups"`
}

// Options configures a Detector.
type Options struct {
	Window         time.Duration
	Lookback       time.Duration
	MinOccurrences int
	Now            func() time.Time
}

// Detector classifies problem groups. The clock is injectable so window
// boundaries are testable.
type Detector struct {
	window   time.Duration
	lookback time.Duration
	minOcc   int
	now      func() time.Time
}

// NewDetector creates a Detector, applying defaults for zero options.
func NewDetector(opts Options) *Detector {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.MinOccurrences <= 0 {
		opts.MinOccurrences = MinOccurrences
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Detector{
		window:   opts.Window,
		lookback: opts.Lookback,
		minOcc:   opts.MinOccurrences,
		now:      opts.Now,
	}
}

// Detect groups posts by content hash and classifies each group. Posts first
// seen before the lookback horizon are ignored entirely. Groups below the
// occurrence floor are counted but never classified.
func (d *Detector) Detect(posts []store.StoredPost) Snapshot {
	now := d.now().UTC()
	windowStart := now.Add(-d.window)
	horizon := now.Add(-d.lookback)

	groups := make(map[string]*Group)
	for _, p := range posts {
		if p.FirstSeen.Before(horizon) {
			continue
		}

		h := Hash(p.Title + " " + p.Body)
		g, ok := groups[h]
		if !ok {
			g = &Group{Hash: h, Label: p.Title}
			groups[h] = g
		}
		g.Total++
		if p.FirstSeen.Before(windowStart) {
			g.Past++
		} else {
			g.Recent++
		}
		g.Posts = append(g.Posts, p.Post)
		if !containsSource(g.Sources, p.Source) {
			g.Sources = append(g.Sources, p.Source)
		}
	}

	snap := Snapshot{GeneratedAt: now, Window: d.window, Groups: len(groups)}
	for _, g := range groups {
		switch {
		case d.isEmerging(g):
			snap.Emerging = append(snap.Emerging, *g)
		case d.isDeclining(g):
			snap.Declining = append(snap.Declining, *g)
		}
	}

	sort.SliceStable(snap.Emerging, func(i, j int) bool {
		a, b := snap.Emerging[i], snap.Emerging[j]
		if a.Recent != b.Recent {
			return a.Recent > b.Recent
		}
		return a.Total > b.Total
	})
	sort.SliceStable(snap.Declining, func(i, j int) bool {
		a, b := snap.Declining[i], snap.Declining[j]
		if da, db := a.Past-a.Recent, b.Past-b.Recent; da != db {
			return da > db
		}
		return a.Total > b.Total
	})
	return snap
}

// isEmerging: enough sightings and strictly more than EmergingRatio of them
// inside the window. A group split exactly 50/50 is neither.
func (d *Detector) isEmerging(g *Group) bool {
	if g.Total < d.minOcc {
		return false
	}
	return float64(g.Recent)/float64(g.Total) > EmergingRatio
}

// isDeclining: enough sightings and strictly more past than recent.
func (d *Detector) isDeclining(g *Group) bool {
	if g.Total < d.minOcc {
		return false
	}
	return g.Past > g.Recent
}

func containsSource(list []domain.SourceName, s domain.SourceName) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
