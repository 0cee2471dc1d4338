// Package analyze sends posts to an OpenAI-compatible chat API in small
// batches and parses the structured judgments back out. Analysis failures
// degrade to unanalyzed posts; they never fail a run.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/problemhunter/problemhunter/engine/cache"
	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/pkg/fn"
)

// BatchSize is how many posts share one completion request. Small batches
// keep prompts inside context limits and contain the blast radius of a
// malformed response.
const BatchSize = 5

const systemPrompt = `You evaluate social media and forum posts for business opportunity.
For each numbered post decide whether it describes a genuine pain point someone
would pay to solve. Respond with a JSON array, one object per post, in order:
[{"is_pain_point": bool, "viability_score": 1-10, "trend_score": 1-10,
"market_size": "small"|"medium"|"large"|"unknown", "competitors": [max 3 names],
"difficulty": 1-10, "time_to_build": "e.g. 2 weeks", "solution": "one sentence",
"reasoning": "one sentence"}]. Output only the JSON array.`

// Config configures an Analyzer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Cache   *cache.Cache // nil disables memoization
	TTL     time.Duration
	Logger  *slog.Logger
}

// Analyzer batches posts through the chat completion API with per-post
// result caching.
type Analyzer struct {
	client openai.Client
	model  string
	cache  *cache.Cache
	ttl    time.Duration
	log    *slog.Logger
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultAnalysisTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		cache:  cfg.Cache,
		ttl:    cfg.TTL,
		log:    cfg.Logger,
	}
}

// AnalyzeAll analyzes every post, serving cached judgments first and sending
// the rest to the model in batches of BatchSize. The result has one entry
// per input post in input order; posts whose batch failed carry a nil
// Analysis.
func (a *Analyzer) AnalyzeAll(ctx context.Context, posts []domain.Post) []domain.AnalyzedPost {
	out := make([]domain.AnalyzedPost, len(posts))
	var pending []int
	for i, p := range posts {
		out[i] = domain.AnalyzedPost{Post: p}
		if cached := a.lookup(p); cached != nil {
			out[i].Analysis = cached
			continue
		}
		pending = append(pending, i)
	}

	for _, batch := range fn.Chunk(pending, BatchSize) {
		batchPosts := make([]domain.Post, len(batch))
		for j, idx := range batch {
			batchPosts[j] = posts[idx]
		}

		results, err := a.analyzeBatch(ctx, batchPosts)
		if err != nil {
			aerr := &domain.AnalysisError{PostID: batchPosts[0].ID, Wrapped: err}
			a.log.WarnContext(ctx, "analysis batch failed", "posts", len(batchPosts), "error", aerr)
			continue
		}
		for j, idx := range batch {
			r := results[j]
			out[idx].Analysis = &r
			if a.cache != nil {
				a.cache.Put(cache.AnalysisKey(r.Source, r.PostID), r, a.ttl)
			}
		}
	}
	return out
}

func (a *Analyzer) lookup(p domain.Post) *domain.AnalysisResult {
	if a.cache == nil {
		return nil
	}
	v, hit := a.cache.Get(cache.AnalysisKey(p.Source, p.ID))
	if !hit {
		return nil
	}
	if r, ok := v.(domain.AnalysisResult); ok {
		return &r
	}
	return nil
}

// modelJudgment is the wire shape of one array element in the response.
type modelJudgment struct {
	IsPainPoint    bool     `json:"is_pain_point"`
	ViabilityScore int      `json:"viability_score"`
	TrendScore     int      `json:"trend_score"`
	MarketSize     string   `json:"market_size"`
	Competitors    []string `json:"competitors"`
	Difficulty     int      `json:"difficulty"`
	TimeToBuild    string   `json:"time_to_build"`
	Solution       string   `json:"solution"`
	Reasoning      string   `json:"reasoning"`
}

func (a *Analyzer) analyzeBatch(ctx context.Context, posts []domain.Post) ([]domain.AnalysisResult, error) {
	prompt := buildPrompt(posts)

	result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[string] {
		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: a.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0.2),
		})
		if err != nil {
			return fn.Err[string](fmt.Errorf("chat completion: %w", err))
		}
		if len(resp.Choices) == 0 {
			return fn.Err[string](fmt.Errorf("empty completion"))
		}
		return fn.Ok(resp.Choices[0].Message.Content)
	})
	content, err := result.Unwrap()
	if err != nil {
		return nil, err
	}
	return parseJudgments(content, posts)
}

func buildPrompt(posts []domain.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate these %d posts:\n\n", len(posts))
	for i, p := range posts {
		body := p.Body
		if len(body) > 500 {
			body = body[:500]
		}
		fmt.Fprintf(&b, "%d. [%s, score %d, %d comments] %s\n%s\n\n",
			i+1, p.Source, p.Score, p.CommentCount, p.Title, body)
	}
	return b.String()
}

// parseJudgments decodes the response array and binds each element to its
// post. A length mismatch rejects the whole batch: positional binding is the
// only identity we have.
func parseJudgments(content string, posts []domain.Post) ([]domain.AnalysisResult, error) {
	content = stripFences(content)

	var judgments []modelJudgment
	if err := json.Unmarshal([]byte(content), &judgments); err != nil {
		return nil, fmt.Errorf("decode judgments: %w", err)
	}
	if len(judgments) != len(posts) {
		return nil, fmt.Errorf("judgment count %d != post count %d", len(judgments), len(posts))
	}

	now := time.Now().UTC()
	results := make([]domain.AnalysisResult, len(posts))
	for i, j := range judgments {
		results[i] = domain.AnalysisResult{
			PostID:         posts[i].ID,
			Source:         posts[i].Source,
			IsPainPoint:    j.IsPainPoint,
			ViabilityScore: clampScore(j.ViabilityScore),
			TrendScore:     clampScore(j.TrendScore),
			MarketSize:     marketSize(j.MarketSize),
			Competitors:    capCompetitors(j.Competitors),
			Difficulty:     clampScore(j.Difficulty),
			TimeToBuild:    j.TimeToBuild,
			Solution:       j.Solution,
			Reasoning:      j.Reasoning,
			AnalyzedAt:     now,
		}
	}
	return results, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampScore(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func marketSize(s string) domain.MarketSize {
	switch domain.MarketSize(strings.ToLower(s)) {
	case domain.MarketSmall, domain.MarketMedium, domain.MarketLarge:
		return domain.MarketSize(strings.ToLower(s))
	}
	return domain.MarketUnknown
}

func capCompetitors(c []string) []string {
	if len(c) > 3 {
		return c[:3]
	}
	return c
}
