package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/problemhunter/problemhunter/engine/domain"
)

func TestBuild(t *testing.T) {
	srcs, err := Build([]domain.SourceName{domain.SourceHackerNews, domain.SourceGitHub}, Config{GitHubToken: "tok"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(srcs) != 2 {
		t.Fatalf("len = %d", len(srcs))
	}
	if srcs[0].Name() != domain.SourceHackerNews || srcs[1].Name() != domain.SourceGitHub {
		t.Fatalf("names = %v, %v", srcs[0].Name(), srcs[1].Name())
	}
}

func TestBuildUnknownSource(t *testing.T) {
	if _, err := Build([]domain.SourceName{"usenet"}, Config{}); err == nil {
		t.Fatal("unknown source must be rejected")
	}
}

func TestHackerNewsFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		w.Write([]byte(`{"hits": [
			{"objectID": "101", "title": "Ask HN: invoicing is tedious", "points": 42, "num_comments": 7, "created_at_i": 1754000000},
			{"objectID": "102", "title": "Company X is hiring engineers", "points": 90, "num_comments": 3, "created_at_i": 1754000000},
			{"objectID": "103", "title": "", "points": 12, "num_comments": 4, "created_at_i": 1754000000}
		]}`))
	}))
	defer srv.Close()

	s := NewHackerNews()
	s.apiBase = srv.URL

	posts, err := s.Fetch(context.Background(), []string{"invoicing"}, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want hiring and untitled stories dropped", len(posts))
	}
	p := posts[0]
	if p.ID != "hn_101" || p.Source != domain.SourceHackerNews {
		t.Fatalf("identity = %s/%s", p.Source, p.ID)
	}
	if p.URL != "https://news.ycombinator.com/item?id=101" {
		t.Fatalf("fallback URL = %q", p.URL)
	}
	if p.Score != 42 || p.CommentCount != 7 {
		t.Fatalf("score=%d comments=%d", p.Score, p.CommentCount)
	}
	if gotQuery != "Ask HN invoicing" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestStackOverflowSkipsAnswered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("site") != "stackoverflow" {
			t.Errorf("site = %q", r.URL.Query().Get("site"))
		}
		w.Write([]byte(`{"items": [
			{"question_id": 1, "title": "How to sync two CRMs?", "link": "https://stackoverflow.com/q/1",
			 "score": 12, "answer_count": 3, "creation_date": 1754000000, "is_answered": false,
			 "tags": ["crm", "sync", "api", "webhooks", "etl", "extra"]},
			{"question_id": 2, "title": "Solved question", "link": "https://stackoverflow.com/q/2",
			 "score": 40, "answer_count": 5, "creation_date": 1754000000, "is_answered": true}
		]}`))
	}))
	defer srv.Close()

	s := NewStackOverflow()
	s.apiBase = srv.URL

	posts, err := s.Fetch(context.Background(), []string{"crm"}, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, answered question must be skipped", len(posts))
	}
	if posts[0].ID != "so_1" {
		t.Fatalf("id = %q", posts[0].ID)
	}
	if len(posts[0].Tags) != 5 {
		t.Fatalf("tags = %v, want capped at 5", posts[0].Tags)
	}
	if posts[0].CommentCount != 3 {
		t.Fatalf("comment count = %d, want answer count", posts[0].CommentCount)
	}
}

func TestGitHubSkipsPullRequests(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"items": [
			{"id": 11, "title": "Feature: bulk export", "html_url": "https://github.com/x/y/issues/11",
			 "comments": 6, "created_at": "2026-08-01T00:00:00Z", "reactions": {"total_count": 14}},
			{"id": 12, "title": "Fix typo", "html_url": "https://github.com/x/y/pull/12",
			 "comments": 1, "created_at": "2026-08-01T00:00:00Z", "pull_request": {}, "reactions": {"total_count": 0}}
		]}`))
	}))
	defer srv.Close()

	s := NewGitHub("tok")
	s.apiBase = srv.URL

	posts, err := s.Fetch(context.Background(), []string{"export"}, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, pull request must be skipped", len(posts))
	}
	if posts[0].ID != "gh_11" {
		t.Fatalf("id = %q", posts[0].ID)
	}
	if posts[0].Score != 20 {
		t.Fatalf("score = %d, want reactions+comments", posts[0].Score)
	}
	if gotAuth != "token tok" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestRedditPainPatternFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"children": [
			{"data": {"id": "aaa", "title": "I am tired of reconciling invoices", "selftext": "",
			 "permalink": "/r/SaaS/comments/aaa/x/", "subreddit": "SaaS", "score": 30, "num_comments": 12, "created_utc": 1754000000}},
			{"data": {"id": "bbb", "title": "Launching my new product today", "selftext": "so excited",
			 "permalink": "/r/SaaS/comments/bbb/x/", "subreddit": "SaaS", "score": 99, "num_comments": 40, "created_utc": 1754000000}}
		]}}`))
	}))
	defer srv.Close()

	s := NewReddit("test-agent")
	s.apiBase = srv.URL
	s.subreddits = []string{"SaaS"}

	posts, err := s.Fetch(context.Background(), []string{"invoices"}, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, non-pain post must be filtered", len(posts))
	}
	if posts[0].ID != "aaa" || posts[0].Tags[0] != "SaaS" {
		t.Fatalf("got %+v", posts[0])
	}
}

func TestFetchErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewHackerNews()
	s.apiBase = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := s.Fetch(ctx, []string{"crm"}, 10); err == nil {
		t.Fatal("non-2xx status must surface as an error")
	}
}

func TestLimitCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits": [
			{"objectID": "1", "title": "a problem", "points": 10, "num_comments": 3, "created_at_i": 1754000000},
			{"objectID": "2", "title": "b problem", "points": 10, "num_comments": 3, "created_at_i": 1754000000},
			{"objectID": "3", "title": "c problem", "points": 10, "num_comments": 3, "created_at_i": 1754000000}
		]}`))
	}))
	defer srv.Close()

	s := NewHackerNews()
	s.apiBase = srv.URL

	posts, err := s.Fetch(context.Background(), []string{"problem"}, 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts = %d, want limit honored", len(posts))
	}
}

func TestRedditURLUsesPermalink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"children": [
			{"data": {"id": "ccc", "title": "struggle with spreadsheet exports", "selftext": "",
			 "permalink": "/r/SaaS/comments/ccc/x/", "subreddit": "SaaS", "score": 5, "num_comments": 2, "created_utc": 1754000000}}
		]}}`))
	}))
	defer srv.Close()

	s := NewReddit("")
	s.apiBase = srv.URL
	s.subreddits = []string{"SaaS"}

	posts, err := s.Fetch(context.Background(), []string{"exports"}, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d", len(posts))
	}
	if posts[0].URL != "https://www.reddit.com/r/SaaS/comments/ccc/x/" {
		t.Fatalf("URL = %q", posts[0].URL)
	}
}
