// Package cache memoizes expensive external calls (feed fetches and AI
// analyses) with time-bounded entries. The cache is an optimization, never a
// correctness dependency: any failure or expiry degrades to a miss.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/problemhunter/problemhunter/engine/domain"
)

// Kind separates the cache namespaces.
type Kind string

const (
	KindFetch    Kind = "fetch"
	KindAnalysis Kind = "analysis"
)

// Default entry lifetimes. Re-analysis is strictly more expensive than
// re-fetch, so analysis entries live much longer.
const (
	DefaultFetchTTL    = 24 * time.Hour
	DefaultAnalysisTTL = 30 * 24 * time.Hour
)

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// Stats reports cache hit/miss accounting.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// Cache is a concurrency-safe in-process memoization store with per-entry
// expiry. Expiry is lazy-checked on read; ClearExpired is maintenance only.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    int64
	misses  int64
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock creates a cache with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// FetchKey builds the scope key for a feed-fetch result: kind, source, and
// the normalized (sorted, deduplicated) keyword set.
func FetchKey(source domain.SourceName, keywords []string) string {
	norm := domain.NormalizeKeywords(keywords)
	return string(KindFetch) + ":" + string(source) + ":" + strings.Join(norm, ",")
}

// AnalysisKey builds the scope key for an AI analysis result.
func AnalysisKey(source domain.SourceName, postID string) string {
	return string(KindAnalysis) + ":" + string(source) + ":" + postID
}

// Get returns the cached value for key and whether it was a valid hit.
// An expired entry is reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key with the given ttl. A non-positive ttl stores an
// already-expired entry, which the next Get reports as a miss.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	c.entries[key] = entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

// ClearExpired eagerly removes expired entries and returns how many were
// dropped. Not required for correctness.
func (c *Cache) ClearExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// ClearScope removes all entries whose key starts with prefix (e.g. every
// fetch entry for one source). Returns how many were dropped.
func (c *Cache) ClearScope(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Stats returns running hit/miss counters. HitRate is 0 when no lookups have
// happened.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
