package cache

import (
	"testing"
	"time"

	"github.com/problemhunter/problemhunter/engine/domain"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(clk.now), clk
}

func TestGetPutRoundtrip(t *testing.T) {
	c, _ := newTestCache()
	c.Put("k", "value", time.Hour)

	v, hit := c.Get("k")
	if !hit {
		t.Fatal("expected hit")
	}
	if v.(string) != "value" {
		t.Fatalf("got %v", v)
	}
}

func TestExpiryIsLazy(t *testing.T) {
	c, clk := newTestCache()
	c.Put("k", 1, time.Hour)

	clk.advance(59 * time.Minute)
	if _, hit := c.Get("k"); !hit {
		t.Fatal("entry expired early")
	}

	clk.advance(2 * time.Minute)
	if _, hit := c.Get("k"); hit {
		t.Fatal("expired entry served")
	}

	// The entry is still resident until maintenance runs.
	if s := c.Stats(); s.Entries != 1 {
		t.Fatalf("entries = %d, want 1", s.Entries)
	}
	if n := c.ClearExpired(); n != 1 {
		t.Fatalf("ClearExpired = %d, want 1", n)
	}
	if s := c.Stats(); s.Entries != 0 {
		t.Fatalf("entries = %d after clear", s.Entries)
	}
}

func TestZeroTTLIsImmediateMiss(t *testing.T) {
	c, _ := newTestCache()
	c.Put("k", 1, 0)
	if _, hit := c.Get("k"); hit {
		t.Fatal("zero-ttl entry must read as a miss")
	}
	c.Put("k2", 1, -time.Second)
	if _, hit := c.Get("k2"); hit {
		t.Fatal("negative-ttl entry must read as a miss")
	}
}

func TestOverwriteResetsExpiry(t *testing.T) {
	c, clk := newTestCache()
	c.Put("k", "old", time.Minute)
	clk.advance(50 * time.Second)
	c.Put("k", "new", time.Minute)
	clk.advance(30 * time.Second)

	v, hit := c.Get("k")
	if !hit || v.(string) != "new" {
		t.Fatalf("got %v hit=%v, want fresh value", v, hit)
	}
}

func TestStatsAccounting(t *testing.T) {
	c, _ := newTestCache()

	if s := c.Stats(); s.HitRate != 0 {
		t.Fatalf("hit rate with no lookups = %v, want 0", s.HitRate)
	}

	c.Put("k", 1, time.Hour)
	c.Get("k")     // hit
	c.Get("k")     // hit
	c.Get("other") // miss

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("hits=%d misses=%d", s.Hits, s.Misses)
	}
	want := 2.0 / 3.0
	if s.HitRate < want-1e-9 || s.HitRate > want+1e-9 {
		t.Fatalf("hit rate = %v, want %v", s.HitRate, want)
	}
}

func TestExpiredReadCountsAsMiss(t *testing.T) {
	c, clk := newTestCache()
	c.Put("k", 1, time.Minute)
	clk.advance(2 * time.Minute)
	c.Get("k")

	if s := c.Stats(); s.Misses != 1 || s.Hits != 0 {
		t.Fatalf("hits=%d misses=%d, want 0/1", s.Hits, s.Misses)
	}
}

func TestClearScope(t *testing.T) {
	c, _ := newTestCache()
	c.Put(FetchKey(domain.SourceHackerNews, []string{"a"}), 1, time.Hour)
	c.Put(FetchKey(domain.SourceHackerNews, []string{"b"}), 1, time.Hour)
	c.Put(FetchKey(domain.SourceReddit, []string{"a"}), 1, time.Hour)
	c.Put(AnalysisKey(domain.SourceHackerNews, "hn_1"), 1, time.Hour)

	dropped := c.ClearScope(string(KindFetch) + ":" + string(domain.SourceHackerNews))
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if _, hit := c.Get(FetchKey(domain.SourceReddit, []string{"a"})); !hit {
		t.Fatal("other source's entry was dropped")
	}
	if _, hit := c.Get(AnalysisKey(domain.SourceHackerNews, "hn_1")); !hit {
		t.Fatal("analysis entry was dropped")
	}
}

func TestFetchKeyNormalizesKeywords(t *testing.T) {
	a := FetchKey(domain.SourceGitHub, []string{"CRM", "invoicing", "crm "})
	b := FetchKey(domain.SourceGitHub, []string{"invoicing", "crm"})
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == FetchKey(domain.SourceReddit, []string{"invoicing", "crm"}) {
		t.Fatal("different sources must not share a key")
	}
}
