package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/pkg/fn"
)

const soAPIBase = "https://api.stackexchange.com/2.3"

var soFallbackTerms = []string{"automation", "workflow", "manual"}

// StackOverflow fetches unanswered questions through the Stack Exchange API.
// Unanswered high-view questions are the pain-point signal here.
type StackOverflow struct {
	apiBase string
	site    string
	limiter *rate.Limiter
	client  *http.Client
}

// NewStackOverflow creates the Stack Overflow adapter.
func NewStackOverflow() *StackOverflow {
	return &StackOverflow{
		apiBase: soAPIBase,
		site:    "stackoverflow",
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		client:  newHTTPClient(),
	}
}

func (s *StackOverflow) Name() domain.SourceName { return domain.SourceStackOverflow }

// Fetch searches questions for the given keywords.
func (s *StackOverflow) Fetch(ctx context.Context, keywords []string, limit int) ([]domain.Post, error) {
	terms := keywords
	if len(terms) == 0 {
		terms = soFallbackTerms
	}
	if len(terms) > 3 {
		terms = terms[:3]
	}

	var posts []domain.Post
	for _, term := range terms {
		qs, err := s.search(ctx, term, limit/3+1)
		if err != nil {
			return nil, fmt.Errorf("stackoverflow %q: %w", term, err)
		}
		posts = append(posts, qs...)
		if len(posts) >= limit {
			break
		}
	}
	return capped(posts, limit), nil
}

type soSearchResponse struct {
	Items []soQuestion `json:"items"`
}

type soQuestion struct {
	QuestionID   int64    `json:"question_id"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Link         string   `json:"link"`
	Score        int      `json:"score"`
	AnswerCount  int      `json:"answer_count"`
	CreationDate int64    `json:"creation_date"`
	IsAnswered   bool     `json:"is_answered"`
	Tags         []string `json:"tags"`
}

func (s *StackOverflow) search(ctx context.Context, query string, perQuery int) ([]domain.Post, error) {
	if perQuery > 100 {
		perQuery = 100
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("site", s.site)
	params.Set("pagesize", fmt.Sprintf("%d", perQuery))
	params.Set("order", "desc")
	params.Set("sort", "votes")
	params.Set("filter", "withbody")

	u := s.apiBase + "/search/advanced?" + params.Encode()

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

	var resp soSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	now := time.Now().UTC()
	posts := make([]domain.Post, 0, len(resp.Items))
	for _, q := range resp.Items {
		if p, ok := s.normalize(q, now); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *StackOverflow) normalize(q soQuestion, fetchedAt time.Time) (domain.Post, bool) {
	// An accepted answer means the problem is already solved.
	if q.IsAnswered {
		return domain.Post{}, false
	}

	text := q.Body
	if len(text) > 1000 {
		text = text[:1000]
	}
	tags := q.Tags
	if len(tags) > 5 {
		tags = tags[:5]
	}

	return domain.Post{
		ID:           fmt.Sprintf("so_%d", q.QuestionID),
		Source:       domain.SourceStackOverflow,
		Title:        q.Title,
		Body:         text,
		URL:          q.Link,
		Score:        q.Score,
		CommentCount: q.AnswerCount,
		Tags:         tags,
		CreatedAt:    time.Unix(q.CreationDate, 0).UTC(),
		FetchedAt:    fetchedAt,
	}, true
}
