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

const redditAPIBase = "https://www.reddit.com"

// Subreddits where workflow pain gets posted.
var defaultSubreddits = []string{
	"SaaS",
	"Entrepreneur",
	"smallbusiness",
	"productivity",
	"startups",
}

// Reddit fetches posts through the public JSON listing API and pre-filters
// them with the pain-pattern regexes before they cost any analysis budget.
type Reddit struct {
	apiBase    string
	subreddits []string
	userAgent  string
	limiter    *rate.Limiter
	client     *http.Client
}

// NewReddit creates the Reddit adapter. Reddit rejects requests without a
// distinctive User-Agent.
func NewReddit(userAgent string) *Reddit {
	if userAgent == "" {
		userAgent = "problemhunter/0.1"
	}
	return &Reddit{
		apiBase:    redditAPIBase,
		subreddits: defaultSubreddits,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		client:     newHTTPClient(),
	}
}

func (s *Reddit) Name() domain.SourceName { return domain.SourceReddit }

// Fetch searches the configured subreddits and keeps posts whose text
// matches a pain pattern.
func (s *Reddit) Fetch(ctx context.Context, keywords []string, limit int) ([]domain.Post, error) {
	query := strings.Join(keywords, " OR ")
	if query == "" {
		query = "pain OR problem OR solution"
	}

	var posts []domain.Post
	for _, sub := range s.subreddits {
		found, err := s.searchSubreddit(ctx, sub, query, limit)
		if err != nil {
			return nil, fmt.Errorf("reddit r/%s: %w", sub, err)
		}
		posts = append(posts, found...)
		if len(posts) >= limit {
			break
		}
	}
	return capped(posts, limit), nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (s *Reddit) searchSubreddit(ctx context.Context, sub, query string, limit int) ([]domain.Post, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "new")
	params.Set("restrict_sr", "1")
	params.Set("raw_json", "1")
	// Fetch extra because the pain-pattern filter drops most of them.
	params.Set("limit", fmt.Sprintf("%d", min(limit*3, 100)))

	u := fmt.Sprintf("%s/r/%s/search.json?%s", s.apiBase, sub, params.Encode())
	headers := map[string]string{"User-Agent": s.userAgent}

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

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	now := time.Now().UTC()
	var posts []domain.Post
	for _, child := range listing.Data.Children {
		d := child.Data
		if !domain.MatchesPainPattern(d.Title + " " + d.SelfText) {
			continue
		}
		posts = append(posts, domain.Post{
			ID:           d.ID,
			Source:       domain.SourceReddit,
			Title:        d.Title,
			Body:         d.SelfText,
			URL:          redditAPIBase + d.Permalink,
			Score:        d.Score,
			CommentCount: d.NumComments,
			Tags:         []string{d.Subreddit},
			CreatedAt:    time.Unix(int64(d.CreatedUTC), 0).UTC(),
			FetchedAt:    now,
		})
	}
	return posts, nil
}
