// Package sources implements the feed adapters: one pluggable fetcher per
// external content feed, each returning normalized posts. Adding a source
// means adding one Source implementation and one registry entry; the
// aggregator never changes.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/problemhunter/problemhunter/engine/domain"
)

// Source is one external content feed.
type Source interface {
	Name() domain.SourceName
	// Fetch returns up to limit normalized posts matching the keywords.
	// Implementations must be safe to retry and honor ctx cancellation.
	Fetch(ctx context.Context, keywords []string, limit int) ([]domain.Post, error)
}

// Config carries adapter credentials and identification.
type Config struct {
	GitHubToken string
	UserAgent   string
}

type factory func(Config) Source

var registry = map[domain.SourceName]factory{
	domain.SourceHackerNews:    func(Config) Source { return NewHackerNews() },
	domain.SourceStackOverflow: func(Config) Source { return NewStackOverflow() },
	domain.SourceGitHub:        func(cfg Config) Source { return NewGitHub(cfg.GitHubToken) },
	domain.SourceReddit:        func(cfg Config) Source { return NewReddit(cfg.UserAgent) },
}

// Build instantiates the named sources. Unknown names are an error.
func Build(names []domain.SourceName, cfg Config) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		f, ok := registry[n]
		if !ok {
			return nil, domain.NewValidationError("source", string(n), domain.ErrUnknownSource)
		}
		out = append(out, f(cfg))
	}
	return out, nil
}

// newHTTPClient builds the shared adapter HTTP client with OTel
// instrumentation and a hard request timeout.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// get issues a GET with the given headers and returns the response body.
// Non-2xx statuses are errors.
func get(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// capped returns posts truncated to limit.
func capped(posts []domain.Post, limit int) []domain.Post {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}
