package hunt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/problemhunter/problemhunter/engine/aggregate"
	"github.com/problemhunter/problemhunter/engine/cache"
	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/sources"
	"github.com/problemhunter/problemhunter/engine/store"
	"github.com/problemhunter/problemhunter/engine/trend"
)

type fakeSource struct {
	name  domain.SourceName
	posts []domain.Post
	err   error
}

func (f *fakeSource) Name() domain.SourceName { return f.name }
func (f *fakeSource) Fetch(context.Context, []string, int) ([]domain.Post, error) {
	return f.posts, f.err
}

func fixedPost(id, title string, fetchedAt time.Time) domain.Post {
	return domain.Post{
		ID:        id,
		Source:    domain.SourceHackerNews,
		Title:     title,
		URL:       "https://example.com/" + id,
		Score:     10,
		CreatedAt: fetchedAt.Add(-time.Hour),
		FetchedAt: fetchedAt,
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *cache.Cache) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "hunter.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c := cache.New()
	p := New(Deps{
		Aggregator: aggregate.New(aggregate.Options{Cache: c, FetchTTL: time.Hour}),
		Store:      st,
		Detector:   trend.NewDetector(trend.Options{}),
		Cache:      c,
	})
	return p, st, c
}

func TestRunFetchesAndPersists(t *testing.T) {
	p, st, _ := newTestPipeline(t)
	now := time.Now().UTC()

	srcs := []sources.Source{&fakeSource{
		name: domain.SourceHackerNews,
		posts: []domain.Post{
			fixedPost("hn_1", "tired of manual invoicing", now),
			fixedPost("hn_2", "new framework release", now),
		},
	}}

	stats, err := p.Run(context.Background(), srcs, []string{"invoicing"}, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Fetched != 2 || stats.Stored != 2 || stats.NewPosts != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.RunID == "" {
		t.Fatal("run must carry an ID")
	}

	dbStats, err := st.Stats()
	if err != nil {
		t.Fatalf("db stats: %v", err)
	}
	if dbStats.TotalPosts != 2 {
		t.Fatalf("persisted = %d, want 2", dbStats.TotalPosts)
	}
	if _, err := st.LatestTrendSnapshot(&trend.Snapshot{}); err != nil {
		t.Fatalf("no trend snapshot saved: %v", err)
	}
}

func TestRunWithoutAnalyzerKeepsRawPosts(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	now := time.Now().UTC()

	// A high pain score would normally be an analysis candidate.
	srcs := []sources.Source{&fakeSource{
		name:  domain.SourceHackerNews,
		posts: []domain.Post{fixedPost("hn_1", "I hate this manual process, wasting hours daily", now)},
	}}

	stats, err := p.Run(context.Background(), srcs, []string{"crm"}, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Candidates != 1 {
		t.Fatalf("candidates = %d, want 1", stats.Candidates)
	}
	if stats.Analyzed != 0 || stats.PainPoints != 0 {
		t.Fatalf("stats = %+v, nothing should be analyzed without an analyzer", stats)
	}
	if stats.Stored != 1 {
		t.Fatalf("stored = %d, raw post must still persist", stats.Stored)
	}
}

func TestRunIsIdempotentAcrossReplays(t *testing.T) {
	p, st, c := newTestPipeline(t)
	now := time.Now().UTC()

	srcs := []sources.Source{&fakeSource{
		name:  domain.SourceHackerNews,
		posts: []domain.Post{fixedPost("hn_1", "same post", now)},
	}}

	if _, err := p.Run(context.Background(), srcs, []string{"crm"}, 10); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := p.Run(context.Background(), srcs, []string{"crm"}, 10)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.NewPosts != 0 {
		t.Fatalf("new posts on replay = %d, want 0", stats.NewPosts)
	}

	dbStats, _ := st.Stats()
	if dbStats.TotalPosts != 1 {
		t.Fatalf("persisted = %d, want 1", dbStats.TotalPosts)
	}
	if c.Stats().Hits == 0 {
		t.Fatal("second run should have hit the fetch cache")
	}
}

func TestRunSurfacesAggregatorErrors(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	srcs := []sources.Source{&fakeSource{name: domain.SourceHackerNews, err: errors.New("down")}}

	if _, err := p.Run(context.Background(), srcs, []string{"crm"}, 10); !errors.Is(err, domain.ErrAllSourcesFail) {
		t.Fatalf("err = %v, want ErrAllSourcesFail", err)
	}
	if _, err := p.Run(context.Background(), srcs, nil, 10); !errors.Is(err, domain.ErrNoKeywords) {
		t.Fatalf("err = %v, want ErrNoKeywords", err)
	}
}

func TestTrendSnapshotReflectsHistory(t *testing.T) {
	p, st, _ := newTestPipeline(t)
	now := time.Now().UTC()

	// Seed history: the same problem seen repeatedly inside the window.
	for i := 0; i < 3; i++ {
		seed := fixedPost("hn_seed_"+string(rune('a'+i)), "spreadsheet exports are broken", now.Add(-time.Duration(i+1)*24*time.Hour))
		if err := st.SavePost(seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	srcs := []sources.Source{&fakeSource{
		name:  domain.SourceHackerNews,
		posts: []domain.Post{fixedPost("hn_new", "spreadsheet exports are broken", now)},
	}}

	stats, err := p.Run(context.Background(), srcs, []string{"exports"}, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Emerging != 1 {
		t.Fatalf("emerging = %d, want the recurring problem classified", stats.Emerging)
	}
}
