package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/pkg/fn"
)

const hnAPIBase = "https://hn.algolia.com/api/v1"

// Terms searched when the caller supplies no keywords.
var hnFallbackTerms = []string{"frustrated", "tedious", "wish there was"}

// HackerNews fetches stories through the Algolia search API. No auth needed.
type HackerNews struct {
	apiBase string
	limiter *rate.Limiter
	client  *http.Client
}

// NewHackerNews creates the Hacker News adapter.
func NewHackerNews() *HackerNews {
	return &HackerNews{
		apiBase: hnAPIBase,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		client:  newHTTPClient(),
	}
}

func (s *HackerNews) Name() domain.SourceName { return domain.SourceHackerNews }

// Fetch searches "Ask HN" stories for the given keywords.
func (s *HackerNews) Fetch(ctx context.Context, keywords []string, limit int) ([]domain.Post, error) {
	terms := keywords
	if len(terms) == 0 {
		terms = hnFallbackTerms
	}
	if len(terms) > 3 {
		terms = terms[:3]
	}

	var posts []domain.Post
	for _, term := range terms {
		hits, err := s.search(ctx, "Ask HN "+term, limit/2+1)
		if err != nil {
			return nil, fmt.Errorf("hackernews %q: %w", term, err)
		}
		posts = append(posts, hits...)
		if len(posts) >= limit {
			break
		}
	}
	return capped(posts, limit), nil
}

type hnSearchResponse struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryText   string `json:"story_text"`
	URL         string `json:"url"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

func (s *HackerNews) search(ctx context.Context, query string, perQuery int) ([]domain.Post, error) {
	if perQuery > 50 {
		perQuery = 50
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("tags", "story")
	params.Set("hitsPerPage", fmt.Sprintf("%d", perQuery))
	// Drop low-quality stories at the API.
	params.Set("numericFilters", "points>5,num_comments>2")

	u := s.apiBase + "/search?" + params.Encode()

	result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[]byte] {
		if err := s.limiter.Wait(ctx); err != nil {
			return fn.Err[[]byte](err)
		}
		return fn.FromPair(get(ctx, s.client, u, nil))
	})
	body, err := result.Unwrap()
	if err != nil {
		return nil, err
	}

	var resp hnSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	now := time.Now().UTC()
	posts := make([]domain.Post, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if p, ok := s.normalize(hit, now); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *HackerNews) normalize(hit hnHit, fetchedAt time.Time) (domain.Post, bool) {
	title := hit.Title
	// Job threads are noise for pain-point hunting.
	if title == "" || strings.Contains(strings.ToLower(title), "hiring") {
		return domain.Post{}, false
	}

	link := hit.URL
	if link == "" {
		link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
	}

	return domain.Post{
		ID:           "hn_" + hit.ObjectID,
		Source:       domain.SourceHackerNews,
		Title:        title,
		Body:         hit.StoryText,
		URL:          link,
		Score:        hit.Points,
		CommentCount: hit.NumComments,
		CreatedAt:    time.Unix(hit.CreatedAtI, 0).UTC(),
		FetchedAt:    fetchedAt,
	}, true
}
