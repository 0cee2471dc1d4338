// Package domain defines the core types, constants, and validation for the
// problem hunter pipeline. It acts as the validation gate at pipeline entry
// points.
package domain

import "time"

// SourceName identifies one external content feed.
type SourceName string

const (
	SourceHackerNews    SourceName = "hackernews"
	SourceStackOverflow SourceName = "stackoverflow"
	SourceGitHub        SourceName = "github"
	SourceReddit        SourceName = "reddit"
)

// ValidSources is the set of recognised feed adapters.
var ValidSources = map[SourceName]bool{
	SourceHackerNews:    true,
	SourceStackOverflow: true,
	SourceGitHub:        true,
	SourceReddit:        true,
}

// Post is one normalized content item fetched from a source.
// (id, source) uniquely identifies a post.
type Post struct {
	ID           string     `json:"id"`
	Source       SourceName `json:"source"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	URL          string     `json:"url"`
	Score        int        `json:"score"`
	CommentCount int        `json:"comment_count"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

// Key returns the (source, id) identity of the post.
func (p Post) Key() string { return string(p.Source) + "/" + p.ID }

// MarketSize buckets the addressable market of an opportunity.
type MarketSize string

const (
	MarketSmall   MarketSize = "small"
	MarketMedium  MarketSize = "medium"
	MarketLarge   MarketSize = "large"
	MarketUnknown MarketSize = "unknown"
)

// AnalysisResult is the AI judgment about a Post.
type AnalysisResult struct {
	PostID         string     `json:"post_id"`
	Source         SourceName `json:"source"`
	IsPainPoint    bool       `json:"is_pain_point"`
	ViabilityScore int        `json:"viability_score"` // 1-10
	TrendScore     int        `json:"trend_score"`     // 1-10
	MarketSize     MarketSize `json:"market_size"`
	Competitors    []string   `json:"competitors,omitempty"` // 0-3 names
	Difficulty     int        `json:"difficulty"`            // 1-10
	TimeToBuild    string     `json:"time_to_build"`
	Solution       string     `json:"solution,omitempty"`
	Reasoning      string     `json:"reasoning"`
	AnalyzedAt     time.Time  `json:"analyzed_at"`
}

// AnalyzedPost pairs a post with its analysis, if any.
type AnalyzedPost struct {
	Post     Post            `json:"post"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}
