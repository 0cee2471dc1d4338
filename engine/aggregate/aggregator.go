// Package aggregate runs the feed adapters concurrently under a bounded
// worker pool, isolates per-source failures, and merges, validates, and
// deduplicates the results.
package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/problemhunter/problemhunter/engine/cache"
	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/sources"
	"github.com/problemhunter/problemhunter/pkg/fn"
)

// Defaults for the worker pool and per-source timeout.
const (
	DefaultWorkers       = 5
	DefaultSourceTimeout = 30 * time.Second
)

// SourceStats reports one source's contribution to a run.
type SourceStats struct {
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	CacheHit bool          `json:"cache_hit,omitempty"`
}

// Result is the merged output of one aggregation run.
type Result struct {
	RunID         string                            `json:"run_id"`
	Posts         []domain.Post                     `json:"posts"`
	PerSource     map[domain.SourceName]SourceStats `json:"per_source"`
	Fetched       int                               `json:"fetched"`
	Valid         int                               `json:"valid"`
	Invalid       int                               `json:"invalid"`
	Duplicates    int                               `json:"duplicates"`
	Partial       bool                              `json:"partial,omitempty"`
	TotalDuration time.Duration                     `json:"total_duration"`
}

// Options configures an Aggregator.
type Options struct {
	Workers       int
	SourceTimeout time.Duration
	FetchTTL      time.Duration
	Cache         *cache.Cache // nil disables memoization
	Logger        *slog.Logger
}

// Aggregator owns the fetch worker pool and the merge step. The cache is an
// explicit dependency, never ambient state, so runs are testable with fake
// clocks.
type Aggregator struct {
	workers  int
	timeout  time.Duration
	fetchTTL time.Duration
	cache    *cache.Cache
	log      *slog.Logger
}

// New creates an Aggregator, applying defaults for zero options.
func New(opts Options) *Aggregator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.FetchTTL <= 0 {
		opts.FetchTTL = cache.DefaultFetchTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Aggregator{
		workers:  opts.Workers,
		timeout:  opts.SourceTimeout,
		fetchTTL: opts.FetchTTL,
		cache:    opts.Cache,
		log:      opts.Logger,
	}
}

type fetchOutcome struct {
	source   domain.SourceName
	posts    []domain.Post
	duration time.Duration
	err      error
	cacheHit bool
}

// Run fetches from every source, waits for all tasks (join barrier), then
// merges. A failing or slow source never aborts the run; only invalid
// configuration or every source failing is an error. If ctx expires the
// collected partial result is returned flagged Partial.
func (a *Aggregator) Run(ctx context.Context, srcs []sources.Source, keywords []string, limitPerSource int) (*Result, error) {
	names := fn.Map(srcs, func(s sources.Source) domain.SourceName { return s.Name() })
	if err := domain.ValidateRun(names, keywords); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		PerSource: make(map[domain.SourceName]SourceStats, len(srcs)),
	}

	outcomes := fn.ParMap(srcs, a.workers, func(src sources.Source) fetchOutcome {
		return a.fetchOne(ctx, src, keywords, limitPerSource)
	})

	failures := 0
	var merged []domain.Post
	for _, o := range outcomes {
		stats := SourceStats{
			Count:    len(o.posts),
			Duration: o.duration,
			CacheHit: o.cacheHit,
		}
		if o.err != nil {
			stats.Error = o.err.Error()
			stats.Count = 0
			failures++
		} else {
			merged = append(merged, o.posts...)
			res.Fetched += len(o.posts)
		}
		res.PerSource[o.source] = stats
	}

	valid := make([]domain.Post, 0, len(merged))
	for _, p := range merged {
		if err := domain.ValidatePost(p); err != nil {
			res.Invalid++
			a.log.DebugContext(ctx, "dropping invalid post", "source", p.Source, "id", p.ID, "error", err)
			continue
		}
		valid = append(valid, p)
	}
	res.Valid = len(valid)

	res.Posts = dedupe(valid, &res.Duplicates)
	res.Partial = ctx.Err() != nil
	res.TotalDuration = time.Since(start)

	if len(srcs) > 0 && failures == len(srcs) {
		return res, domain.ErrAllSourcesFail
	}
	return res, nil
}

// fetchOne runs one source task: cache check, adapter call under the
// per-source timeout, cache fill. A timeout cancels only this task.
func (a *Aggregator) fetchOne(ctx context.Context, src sources.Source, keywords []string, limit int) fetchOutcome {
	name := src.Name()
	start := time.Now()

	key := cache.FetchKey(name, keywords)
	if a.cache != nil {
		if v, hit := a.cache.Get(key); hit {
			if posts, ok := v.([]domain.Post); ok {
				return fetchOutcome{source: name, posts: posts, duration: time.Since(start), cacheHit: true}
			}
		}
	}

	taskCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	posts, err := src.Fetch(taskCtx, keywords, limit)
	elapsed := time.Since(start)
	if err != nil {
		a.log.WarnContext(ctx, "source fetch failed", "source", name, "duration", elapsed, "error", err)
		// Partial results from a failed or timed-out source are discarded.
		return fetchOutcome{source: name, duration: elapsed, err: &domain.FetchError{Source: name, Wrapped: err}}
	}

	if a.cache != nil {
		a.cache.Put(key, posts, a.fetchTTL)
	}
	a.log.InfoContext(ctx, "source fetched", "source", name, "posts", len(posts), "duration", elapsed)
	return fetchOutcome{source: name, posts: posts, duration: elapsed}
}

// dedupe collapses posts by (source, id). The earliest-fetched instance is
// retained; its volatile metadata is refreshed from the most recent sighting.
// Duplicates are normal across overlapping fetch windows, not an error.
func dedupe(posts []domain.Post, duplicates *int) []domain.Post {
	type slot struct {
		idx    int
		latest time.Time
	}
	kept := make([]domain.Post, 0, len(posts))
	byKey := make(map[string]*slot, len(posts))

	for _, p := range posts {
		k := p.Key()
		s, ok := byKey[k]
		if !ok {
			kept = append(kept, p)
			byKey[k] = &slot{idx: len(kept) - 1, latest: p.FetchedAt}
			continue
		}

		*duplicates++
		held := &kept[s.idx]
		if p.FetchedAt.Before(held.FetchedAt) {
			// Candidate is older: adopt its identity but keep the metadata,
			// which already reflects the newest sighting seen so far.
			score, comments := held.Score, held.CommentCount
			*held = p
			held.Score = score
			held.CommentCount = comments
			continue
		}
		if !p.FetchedAt.Before(s.latest) {
			s.latest = p.FetchedAt
			held.Score = p.Score
			held.CommentCount = p.CommentCount
		}
	}
	return kept
}

// SortPosts orders posts by the given field, descending. Callers must not
// rely on Run output order and should sort explicitly.
func SortPosts(posts []domain.Post, by string) {
	less := func(a, b domain.Post) bool { return a.Score > b.Score }
	switch by {
	case "recency":
		less = func(a, b domain.Post) bool { return a.CreatedAt.After(b.CreatedAt) }
	case "comments":
		less = func(a, b domain.Post) bool { return a.CommentCount > b.CommentCount }
	}
	sortSlice(posts, less)
}

// FilterPosts applies optional minimum-score, source-set, and created-after
// filters.
func FilterPosts(posts []domain.Post, minScore int, srcs []domain.SourceName, after time.Time) []domain.Post {
	allowed := make(map[domain.SourceName]bool, len(srcs))
	for _, s := range srcs {
		allowed[s] = true
	}
	return fn.Filter(posts, func(p domain.Post) bool {
		if p.Score < minScore {
			return false
		}
		if len(allowed) > 0 && !allowed[p.Source] {
			return false
		}
		if !after.IsZero() && p.CreatedAt.Before(after) {
			return false
		}
		return true
	})
}

func sortSlice(posts []domain.Post, less func(a, b domain.Post) bool) {
	// Insertion sort is fine at aggregation sizes (hundreds of posts).
	for i := 1; i < len(posts); i++ {
		for j := i; j > 0 && less(posts[j], posts[j-1]); j-- {
			posts[j], posts[j-1] = posts[j-1], posts[j]
		}
	}
}
