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

const ghAPIBase = "https://api.github.com"

var ghFallbackTerms = []string{"automation", "workflow", "manual process"}

// GitHub fetches open enhancement issues through the search API. Feature
// requests with many reactions indicate unmet needs.
type GitHub struct {
	apiBase string
	token   string
	limiter *rate.Limiter
	client  *http.Client
}

// NewGitHub creates the GitHub adapter. The token is optional; without it
// the search API allows only a small unauthenticated quota.
func NewGitHub(token string) *GitHub {
	return &GitHub{
		apiBase: ghAPIBase,
		token:   token,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		client:  newHTTPClient(),
	}
}

func (s *GitHub) Name() domain.SourceName { return domain.SourceGitHub }

// Fetch searches open feature-request issues for the given keywords.
func (s *GitHub) Fetch(ctx context.Context, keywords []string, limit int) ([]domain.Post, error) {
	terms := keywords
	if len(terms) == 0 {
		terms = ghFallbackTerms
	}
	if len(terms) > 3 {
		terms = terms[:3]
	}

	var posts []domain.Post
	for _, term := range terms {
		issues, err := s.search(ctx, term, limit/3+1)
		if err != nil {
			return nil, fmt.Errorf("github %q: %w", term, err)
		}
		posts = append(posts, issues...)
		if len(posts) >= limit {
			break
		}
	}
	return capped(posts, limit), nil
}

type ghSearchResponse struct {
	Items []ghIssue `json:"items"`
}

type ghIssue struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	HTMLURL     string      `json:"html_url"`
	Comments    int         `json:"comments"`
	CreatedAt   time.Time   `json:"created_at"`
	PullRequest *struct{}   `json:"pull_request,omitempty"`
	Reactions   ghReactions `json:"reactions"`
}

type ghReactions struct {
	TotalCount int `json:"total_count"`
}

func (s *GitHub) search(ctx context.Context, query string, perQuery int) ([]domain.Post, error) {
	if perQuery > 100 {
		perQuery = 100
	}
	params := url.Values{}
	params.Set("q", query+" is:issue is:open label:enhancement,feature-request")
	params.Set("sort", "reactions")
	params.Set("order", "desc")
	params.Set("per_page", fmt.Sprintf("%d", perQuery))

	u := s.apiBase + "/search/issues?" + params.Encode()

	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if s.token != "" {
		headers["Authorization"] = "token " + s.token
	}

	result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[]byte] {
		if err := s.limiter.Wait(ctx); err != nil {
			return fn.Err[[]byte](err)
		}
		return fn.FromPair(get(ctx, s.client, u, headers))
	})
	body, err := result.Unwrap()
	if err != nil {
		return nil, err
	}

	var resp ghSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	now := time.Now().UTC()
	posts := make([]domain.Post, 0, len(resp.Items))
	for _, issue := range resp.Items {
		if p, ok := s.normalize(issue, now); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *GitHub) normalize(issue ghIssue, fetchedAt time.Time) (domain.Post, bool) {
	// The issue search endpoint also returns pull requests.
	if issue.PullRequest != nil {
		return domain.Post{}, false
	}

	text := issue.Body
	if len(text) > 1000 {
		text = text[:1000]
	}

	return domain.Post{
		ID:           fmt.Sprintf("gh_%d", issue.ID),
		Source:       domain.SourceGitHub,
		Title:        issue.Title,
		Body:         text,
		URL:          issue.HTMLURL,
		Score:        issue.Reactions.TotalCount + issue.Comments,
		CommentCount: issue.Comments,
		CreatedAt:    issue.CreatedAt.UTC(),
		FetchedAt:    fetchedAt,
	}, true
}
