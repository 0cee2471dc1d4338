// Command hunt runs one full hunt: fetch posts from the enabled sources,
// score and analyze them, persist everything, and print the run summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/problemhunter/problemhunter/engine/aggregate"
	"github.com/problemhunter/problemhunter/engine/analyze"
	"github.com/problemhunter/problemhunter/engine/cache"
	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/hunt"
	"github.com/problemhunter/problemhunter/engine/sources"
	"github.com/problemhunter/problemhunter/engine/store"
	"github.com/problemhunter/problemhunter/engine/trend"
	"github.com/problemhunter/problemhunter/pkg/config"
	"github.com/problemhunter/problemhunter/pkg/metrics"
)

func main() {
	var (
		keywordsFlag = flag.String("keywords", "", "comma-separated search keywords (overrides HUNTER_KEYWORDS)")
		sourcesFlag  = flag.String("sources", "", "comma-separated sources (overrides HUNTER_SOURCES)")
		limit        = flag.Int("limit", 0, "max posts per source (overrides HUNTER_LIMIT_PER_SOURCE)")
		dbPath       = flag.String("db", "", "database path (overrides HUNTER_DB_PATH)")
		deadline     = flag.Duration("deadline", 10*time.Minute, "overall run deadline")
		noAnalyze    = flag.Bool("no-analyze", false, "skip AI analysis even if configured")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *keywordsFlag != "" {
		cfg.Sources.Keywords = splitList(*keywordsFlag)
	}
	if *sourcesFlag != "" {
		cfg.Sources.Enabled = splitList(*sourcesFlag)
	}
	if *limit > 0 {
		cfg.Pipeline.LimitPerSource = *limit
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *deadline)
	defer cancel()

	names := make([]domain.SourceName, len(cfg.Sources.Enabled))
	for i, s := range cfg.Sources.Enabled {
		names[i] = domain.SourceName(s)
	}
	srcs, err := sources.Build(names, sources.Config{
		GitHubToken: cfg.Sources.GitHubToken,
		UserAgent:   cfg.Sources.UserAgent,
	})
	if err != nil {
		log.Fatalf("sources: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	c := cache.New()
	agg := aggregate.New(aggregate.Options{
		Workers:       cfg.Pipeline.Workers,
		SourceTimeout: cfg.Pipeline.SourceTimeout,
		FetchTTL:      cfg.Cache.FetchTTL,
		Cache:         c,
	})

	var analyzer *analyze.Analyzer
	if cfg.LLM.Enabled() && !*noAnalyze {
		analyzer = analyze.New(analyze.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Cache:   c,
			TTL:     cfg.Cache.AnalysisTTL,
		})
	} else {
		log.Println("AI analysis disabled, storing raw posts only")
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("hunter-hunt"))
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer nc.Drain()
	}

	detector := trend.NewDetector(trend.Options{
		Window:         time.Duration(cfg.Trend.WindowDays) * 24 * time.Hour,
		Lookback:       time.Duration(cfg.Trend.LookbackDays) * 24 * time.Hour,
		MinOccurrences: cfg.Trend.MinOccurrences,
	})

	pipeline := hunt.New(hunt.Deps{
		Aggregator: agg,
		Analyzer:   analyzer,
		Store:      st,
		Detector:   detector,
		Cache:      c,
		NATS:       nc,
		Subject:    cfg.NATS.Subject,
		Metrics:    metrics.New(),
	})

	stats, err := pipeline.Run(ctx, srcs, cfg.Sources.Keywords, cfg.Pipeline.LimitPerSource)
	if err != nil {
		log.Fatalf("hunt: %v", err)
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
