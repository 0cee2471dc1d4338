// Package store persists posts, analyses, and trend snapshots in an embedded
// bbolt database. Values are JSON, keyed by the (source, id) post identity.
package store

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/problemhunter/problemhunter/engine/domain"
)

var (
	bucketPosts    = []byte("posts")
	bucketAnalyses = []byte("analyses")
	bucketTrends   = []byte("trends")
)

// StoredPost is a Post plus its persistence lifecycle timestamps. FirstSeen
// is set once on insert and survives every later upsert.
type StoredPost struct {
	domain.Post
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Stats summarises the database contents.
type Stats struct {
	TotalPosts    int                       `json:"total_posts"`
	TotalAnalyses int                       `json:"total_analyses"`
	PainPoints    int                       `json:"pain_points_found"`
	PostsBySource map[domain.SourceName]int `json:"posts_by_source"`
}

// Filter narrows QueryPosts. Zero values mean no constraint.
type Filter struct {
	Source   domain.SourceName
	MinScore int
	Since    time.Time
	Limit    int
}

// Store is a bbolt-backed repository. Safe for concurrent use; bbolt
// serialises writers internally.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Wrapped: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPosts, bucketAnalyses, bucketTrends} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Op: "init", Wrapped: err}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SavePost upserts one post. On conflict the original FirstSeen, title, and
// body are preserved; LastSeen, Score, and CommentCount are refreshed. The
// operation is idempotent: replaying the same post changes nothing but
// LastSeen.
func (s *Store) SavePost(p domain.Post) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return upsertPost(tx.Bucket(bucketPosts), p)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save post", Wrapped: err}
	}
	return nil
}

// SavePosts upserts a batch in a single transaction and reports how many
// were new inserts.
func (s *Store) SavePosts(posts []domain.Post) (int, error) {
	inserted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		for _, p := range posts {
			if b.Get([]byte(p.Key())) == nil {
				inserted++
			}
			if err := upsertPost(b, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, &domain.PersistenceError{Op: "save posts", Wrapped: err}
	}
	return inserted, nil
}

func upsertPost(b *bolt.Bucket, p domain.Post) error {
	key := []byte(p.Key())
	rec := StoredPost{Post: p, FirstSeen: p.FetchedAt, LastSeen: p.FetchedAt}

	if data := b.Get(key); data != nil {
		var prev StoredPost
		if err := json.Unmarshal(data, &prev); err == nil {
			prev.Score = p.Score
			prev.CommentCount = p.CommentCount
			prev.LastSeen = p.FetchedAt
			rec = prev
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// GetPost retrieves one post by identity, or domain.ErrNotFound.
func (s *Store) GetPost(source domain.SourceName, id string) (*StoredPost, error) {
	var rec StoredPost
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPosts).Get([]byte(string(source) + "/" + id))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "get post", Wrapped: err}
	}
	return &rec, nil
}

// QueryPosts returns posts matching the filter, newest first by FirstSeen.
func (s *Store) QueryPosts(f Filter) ([]StoredPost, error) {
	var posts []StoredPost
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPosts).ForEach(func(k, v []byte) error {
			var rec StoredPost
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if f.Source != "" && rec.Source != f.Source {
				return nil
			}
			if rec.Score < f.MinScore {
				return nil
			}
			if !f.Since.IsZero() && rec.FirstSeen.Before(f.Since) {
				return nil
			}
			posts = append(posts, rec)
			return nil
		})
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query posts", Wrapped: err}
	}

	for i := 1; i < len(posts); i++ {
		for j := i; j > 0 && posts[j].FirstSeen.After(posts[j-1].FirstSeen); j-- {
			posts[j], posts[j-1] = posts[j-1], posts[j]
		}
	}
	if f.Limit > 0 && len(posts) > f.Limit {
		posts = posts[:f.Limit]
	}
	return posts, nil
}

// SaveAnalysis upserts the analysis for a post, keyed by the post identity.
func (s *Store) SaveAnalysis(a domain.AnalysisResult) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAnalyses).Put([]byte(string(a.Source)+"/"+a.PostID), data)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save analysis", Wrapped: err}
	}
	return nil
}

// GetAnalysis retrieves the analysis for a post, or domain.ErrNotFound.
func (s *Store) GetAnalysis(source domain.SourceName, postID string) (*domain.AnalysisResult, error) {
	var a domain.AnalysisResult
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAnalyses).Get([]byte(string(source) + "/" + postID))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &a)
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "get analysis", Wrapped: err}
	}
	return &a, nil
}

// AnalysesSince joins posts with their analyses for every post first seen at
// or after t. Posts without an analysis are included with a nil Analysis.
func (s *Store) AnalysesSince(t time.Time) ([]domain.AnalyzedPost, error) {
	var out []domain.AnalyzedPost
	err := s.db.View(func(tx *bolt.Tx) error {
		analyses := tx.Bucket(bucketAnalyses)
		return tx.Bucket(bucketPosts).ForEach(func(k, v []byte) error {
			var rec StoredPost
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.FirstSeen.Before(t) {
				return nil
			}
			ap := domain.AnalyzedPost{Post: rec.Post}
			if data := analyses.Get(k); data != nil {
				var a domain.AnalysisResult
				if err := json.Unmarshal(data, &a); err == nil {
					ap.Analysis = &a
				}
			}
			out = append(out, ap)
			return nil
		})
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "analyses since", Wrapped: err}
	}
	return out, nil
}

// Stats counts stored posts, analyses, and pain points.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{PostsBySource: make(map[domain.SourceName]int)}
	err := s.db.View(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketPosts).ForEach(func(k, v []byte) error {
			var rec StoredPost
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			stats.TotalPosts++
			stats.PostsBySource[rec.Source]++
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAnalyses).ForEach(func(k, v []byte) error {
			var a domain.AnalysisResult
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			stats.TotalAnalyses++
			if a.IsPainPoint {
				stats.PainPoints++
			}
			return nil
		})
	})
	if err != nil {
		return Stats{}, &domain.PersistenceError{Op: "stats", Wrapped: err}
	}
	return stats, nil
}

// SaveTrendSnapshot stores one trend detection result keyed by its
// timestamp. RFC 3339 keys keep the bucket in chronological order.
func (s *Store) SaveTrendSnapshot(takenAt time.Time, v any) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTrends).Put([]byte(takenAt.UTC().Format(time.RFC3339Nano)), data)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save trends", Wrapped: err}
	}
	return nil
}

// LatestTrendSnapshot decodes the most recent snapshot into v and returns
// when it was taken, or domain.ErrNotFound if none exist.
func (s *Store) LatestTrendSnapshot(v any) (time.Time, error) {
	var takenAt time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		k, data := tx.Bucket(bucketTrends).Cursor().Last()
		if k == nil {
			return domain.ErrNotFound
		}
		t, err := time.Parse(time.RFC3339Nano, string(k))
		if err != nil {
			return err
		}
		takenAt = t
		return json.Unmarshal(data, v)
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return time.Time{}, err
		}
		return time.Time{}, &domain.PersistenceError{Op: "load trends", Wrapped: err}
	}
	return takenAt, nil
}
