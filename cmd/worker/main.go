// Command worker consumes analyzed posts from NATS and maintains counters a
// dashboard can scrape. It is the durable tail of the pipeline when hunt
// runs elsewhere.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"

	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/store"
	"github.com/problemhunter/problemhunter/pkg/config"
	"github.com/problemhunter/problemhunter/pkg/metrics"
	"github.com/problemhunter/problemhunter/pkg/natsutil"
)

var met = metrics.New()

var (
	mReceived = func(source string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("hunter_worker_posts_total", "source", source), "Posts received from the stream")
	}
	mPainPoints = met.Counter("hunter_worker_pain_points_total", "Pain points received")
	mStoreErrs  = met.Counter("hunter_worker_store_errors_total", "Failed upserts")
)

func main() {
	var (
		queue       = flag.String("queue", "hunter-workers", "NATS queue group")
		metricsPort = flag.Int("metrics-port", 9092, "Prometheus metrics port")
		dbPath      = flag.String("db", "", "database path (overrides HUNTER_DB_PATH)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if cfg.NATS.URL == "" {
		log.Fatal("NATS_URL is required for the worker")
	}

	met.ServeAsync(*metricsPort)

	logger := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("hunter-worker"))
	if err != nil {
		log.Fatalf("nats connect: %v", err)
	}
	defer nc.Drain()

	sub, err := natsutil.QueueSubscribe(nc, cfg.NATS.Subject, *queue, func(ctx context.Context, ap domain.AnalyzedPost) {
		mReceived(string(ap.Post.Source)).Inc()

		if err := st.SavePost(ap.Post); err != nil {
			mStoreErrs.Inc()
			logger.ErrorContext(ctx, "save post failed", "post", ap.Post.Key(), "error", err)
			return
		}
		if ap.Analysis != nil {
			if err := st.SaveAnalysis(*ap.Analysis); err != nil {
				mStoreErrs.Inc()
				logger.ErrorContext(ctx, "save analysis failed", "post", ap.Post.Key(), "error", err)
				return
			}
			if ap.Analysis.IsPainPoint {
				mPainPoints.Inc()
				logger.InfoContext(ctx, "pain point",
					"post", ap.Post.Key(),
					"viability", ap.Analysis.ViabilityScore,
					"market", ap.Analysis.MarketSize,
					"title", ap.Post.Title)
			}
		}
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	logger.Info("worker consuming", "subject", cfg.NATS.Subject, "queue", *queue, "db", cfg.DBPath)
	<-ctx.Done()
	logger.Info("shutting down")
}
