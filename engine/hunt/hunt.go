// Package hunt composes aggregation, analysis, persistence, and trend
// detection into one pipeline run.
package hunt

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/problemhunter/problemhunter/engine/aggregate"
	"github.com/problemhunter/problemhunter/engine/analyze"
	"github.com/problemhunter/problemhunter/engine/cache"
	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/sources"
	"github.com/problemhunter/problemhunter/engine/store"
	"github.com/problemhunter/problemhunter/engine/trend"
	"github.com/problemhunter/problemhunter/pkg/fn"
	"github.com/problemhunter/problemhunter/pkg/metrics"
	"github.com/problemhunter/problemhunter/pkg/natsutil"
)

// MinPainScore is the heuristic floor below which a post is stored but not
// sent for AI analysis.
const MinPainScore = 20

// Deps wires a Pipeline. Analyzer and NATS are optional; the pipeline
// degrades to fetch-and-store without them.
type Deps struct {
	Aggregator *aggregate.Aggregator
	Analyzer   *analyze.Analyzer
	Store      *store.Store
	Detector   *trend.Detector
	Cache      *cache.Cache
	NATS       *nats.Conn
	Subject    string
	Metrics    *metrics.Registry
	Logger     *slog.Logger
}

// RunStats is the outcome of one full hunt.
type RunStats struct {
	RunID      string        `json:"run_id"`
	Fetched    int           `json:"fetched"`
	Valid      int           `json:"valid"`
	Invalid    int           `json:"invalid"`
	Duplicates int           `json:"duplicates"`
	Stored     int           `json:"stored"`
	NewPosts   int           `json:"new_posts"`
	Candidates int           `json:"candidates"`
	Analyzed   int           `json:"analyzed"`
	PainPoints int           `json:"pain_points"`
	Emerging   int           `json:"emerging"`
	Declining  int           `json:"declining"`
	Partial    bool          `json:"partial,omitempty"`
	Cache      cache.Stats   `json:"cache"`
	Duration   time.Duration `json:"duration"`
}

// Pipeline runs hunts. Construct once, run many times.
type Pipeline struct {
	agg      *aggregate.Aggregator
	analyzer *analyze.Analyzer
	store    *store.Store
	detector *trend.Detector
	cache    *cache.Cache
	nc       *nats.Conn
	subject  string
	log      *slog.Logger

	runs     *metrics.Counter
	posts    *metrics.Counter
	pain     *metrics.Counter
	duration *metrics.Histogram
}

// New creates a Pipeline from its dependencies.
func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Pipeline{
		agg:      d.Aggregator,
		analyzer: d.Analyzer,
		store:    d.Store,
		detector: d.Detector,
		cache:    d.Cache,
		nc:       d.NATS,
		subject:  d.Subject,
		log:      d.Logger,
		runs:     d.Metrics.Counter("hunter_runs_total", "Completed hunt runs"),
		posts:    d.Metrics.Counter("hunter_posts_stored_total", "Posts upserted into the store"),
		pain:     d.Metrics.Counter("hunter_pain_points_total", "Posts judged to be pain points"),
		duration: d.Metrics.Histogram("hunter_run_duration_seconds", "Hunt run duration", nil),
	}
}

// runState threads accumulated results through the pipeline stages.
type runState struct {
	agg      *aggregate.Result
	analyzed []domain.AnalyzedPost
	stats    *RunStats
}

// Run executes one hunt: fetch, analyze, persist, detect trends. Source and
// analysis failures degrade; persistence failures abort.
func (p *Pipeline) Run(ctx context.Context, srcs []sources.Source, keywords []string, limitPerSource int) (*RunStats, error) {
	start := time.Now()

	pipeline := fn.Then(
		fn.TracedStage("hunt.fetch", p.fetchStage(srcs, keywords, limitPerSource)),
		fn.Then(
			fn.TracedStage("hunt.analyze", fn.Stage[runState, runState](p.analyzeStage)),
			fn.Then(
				fn.TracedStage("hunt.persist", fn.Stage[runState, runState](p.persistStage)),
				fn.TracedStage("hunt.trends", fn.Stage[runState, runState](p.trendStage)),
			),
		),
	)

	state, err := pipeline(ctx, runState{}).Unwrap()
	if err != nil {
		return nil, err
	}

	stats := state.stats
	stats.Duration = time.Since(start)
	if p.cache != nil {
		stats.Cache = p.cache.Stats()
	}
	p.runs.Inc()
	p.duration.Since(start)

	p.log.InfoContext(ctx, "hunt complete",
		"run_id", stats.RunID,
		"fetched", stats.Fetched,
		"stored", stats.Stored,
		"new", stats.NewPosts,
		"analyzed", stats.Analyzed,
		"pain_points", stats.PainPoints,
		"emerging", stats.Emerging,
		"declining", stats.Declining,
		"partial", stats.Partial,
		"duration", stats.Duration)
	return stats, nil
}

func (p *Pipeline) fetchStage(srcs []sources.Source, keywords []string, limit int) fn.Stage[runState, runState] {
	return func(ctx context.Context, s runState) fn.Result[runState] {
		res, err := p.agg.Run(ctx, srcs, keywords, limit)
		if err != nil {
			return fn.Err[runState](err)
		}
		s.agg = res
		s.stats = &RunStats{
			RunID:      res.RunID,
			Fetched:    res.Fetched,
			Valid:      res.Valid,
			Invalid:    res.Invalid,
			Duplicates: res.Duplicates,
			Partial:    res.Partial,
		}
		return fn.Ok(s)
	}
}

// analyzeStage sends pain-scored candidates to the model. Without an
// analyzer every post passes through unanalyzed.
func (p *Pipeline) analyzeStage(ctx context.Context, s runState) fn.Result[runState] {
	candidates := make([]domain.Post, 0, len(s.agg.Posts))
	rest := make([]domain.Post, 0, len(s.agg.Posts))
	for _, post := range s.agg.Posts {
		if domain.PainScore(post.Title+" "+post.Body) >= MinPainScore {
			candidates = append(candidates, post)
		} else {
			rest = append(rest, post)
		}
	}
	s.stats.Candidates = len(candidates)

	if p.analyzer == nil || len(candidates) == 0 {
		rest = append(rest, candidates...)
		candidates = nil
	}

	if len(candidates) > 0 {
		s.analyzed = p.analyzer.AnalyzeAll(ctx, candidates)
		for _, ap := range s.analyzed {
			if ap.Analysis == nil {
				continue
			}
			s.stats.Analyzed++
			if ap.Analysis.IsPainPoint {
				s.stats.PainPoints++
				p.pain.Inc()
			}
		}
	}
	for _, post := range rest {
		s.analyzed = append(s.analyzed, domain.AnalyzedPost{Post: post})
	}
	return fn.Ok(s)
}

// persistStage upserts everything and publishes analyzed posts downstream.
func (p *Pipeline) persistStage(ctx context.Context, s runState) fn.Result[runState] {
	posts := make([]domain.Post, len(s.analyzed))
	for i, ap := range s.analyzed {
		posts[i] = ap.Post
	}

	inserted, err := p.store.SavePosts(posts)
	if err != nil {
		return fn.Err[runState](err)
	}
	s.stats.Stored = len(posts)
	s.stats.NewPosts = inserted
	p.posts.Add(int64(len(posts)))

	for _, ap := range s.analyzed {
		if ap.Analysis != nil {
			if err := p.store.SaveAnalysis(*ap.Analysis); err != nil {
				return fn.Err[runState](err)
			}
		}
		if p.nc != nil {
			if err := natsutil.Publish(ctx, p.nc, p.subject, ap); err != nil {
				p.log.WarnContext(ctx, "publish failed", "subject", p.subject, "post", ap.Post.Key(), "error", err)
			}
		}
	}
	return fn.Ok(s)
}

// trendStage reclassifies every stored post and snapshots the result.
func (p *Pipeline) trendStage(ctx context.Context, s runState) fn.Result[runState] {
	if p.detector == nil {
		return fn.Ok(s)
	}

	stored, err := p.store.QueryPosts(store.Filter{})
	if err != nil {
		return fn.Err[runState](err)
	}

	snap := p.detector.Detect(stored)
	s.stats.Emerging = len(snap.Emerging)
	s.stats.Declining = len(snap.Declining)

	if err := p.store.SaveTrendSnapshot(snap.GeneratedAt, snap); err != nil {
		return fn.Err[runState](err)
	}
	return fn.Ok(s)
}
