// Package config loads engine configuration from environment variables,
// with a .env file fallback for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full configuration surface of the hunter pipeline.
type Config struct {
	Sources  SourcesConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
	Trend    TrendConfig
	LLM      LLMConfig
	NATS     NATSConfig
	DBPath   string
	Env      string
}

// SourcesConfig selects feed adapters and carries their credentials.
type SourcesConfig struct {
	Enabled     []string
	Keywords    []string
	GitHubToken string
	UserAgent   string
}

// PipelineConfig bounds the aggregation run.
type PipelineConfig struct {
	Workers        int
	LimitPerSource int
	SourceTimeout  time.Duration
}

// CacheConfig sets cache entry lifetimes.
type CacheConfig struct {
	FetchTTL    time.Duration
	AnalysisTTL time.Duration
}

// TrendConfig tunes trend classification.
type TrendConfig struct {
	WindowDays     int
	MinOccurrences int
	LookbackDays   int
}

// LLMConfig points at an OpenAI-compatible analysis endpoint.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NATSConfig wires the post hand-off between hunt and worker.
type NATSConfig struct {
	URL     string
	Subject string
}

// Enabled reports whether AI analysis is configured.
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

// Load reads configuration from the environment. In development a .env file
// is loaded first if present.
func Load() (Config, error) {
	if getEnv("HUNTER_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:    getEnv("HUNTER_ENV", "development"),
		DBPath: getEnv("HUNTER_DB_PATH", "problemhunter.db"),
		Sources: SourcesConfig{
			Enabled:     getEnvList("HUNTER_SOURCES", []string{"hackernews", "stackoverflow"}),
			Keywords:    getEnvList("HUNTER_KEYWORDS", nil),
			GitHubToken: getEnv("GITHUB_TOKEN", ""),
			UserAgent:   getEnv("HUNTER_USER_AGENT", "problemhunter/0.1"),
		},
		Pipeline: PipelineConfig{
			Workers:        getEnvInt("HUNTER_WORKERS", 5),
			LimitPerSource: getEnvInt("HUNTER_LIMIT_PER_SOURCE", 50),
			SourceTimeout:  getEnvDuration("HUNTER_SOURCE_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			FetchTTL:    getEnvDuration("HUNTER_FETCH_TTL", 24*time.Hour),
			AnalysisTTL: getEnvDuration("HUNTER_ANALYSIS_TTL", 30*24*time.Hour),
		},
		Trend: TrendConfig{
			WindowDays:     getEnvInt("HUNTER_TREND_WINDOW_DAYS", 30),
			MinOccurrences: getEnvInt("HUNTER_TREND_MIN_OCCURRENCES", 3),
			LookbackDays:   getEnvInt("HUNTER_TREND_LOOKBACK_DAYS", 180),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "hunter.posts.analyzed"),
		},
	}

	if cfg.Pipeline.Workers <= 0 {
		return Config{}, fmt.Errorf("HUNTER_WORKERS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
