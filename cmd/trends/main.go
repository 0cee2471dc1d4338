// Command trends prints trend classifications from the database: either the
// snapshot saved by the last hunt, or a fresh detection pass over all stored
// posts.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/problemhunter/problemhunter/engine/domain"
	"github.com/problemhunter/problemhunter/engine/store"
	"github.com/problemhunter/problemhunter/engine/trend"
	"github.com/problemhunter/problemhunter/pkg/config"
)

func main() {
	var (
		dbPath = flag.String("db", "", "database path (overrides HUNTER_DB_PATH)")
		fresh  = flag.Bool("fresh", false, "recompute instead of loading the last snapshot")
		asJSON = flag.Bool("json", false, "emit the raw snapshot as JSON")
		topN   = flag.Int("top", 10, "groups to print per classification")
		stats  = flag.Bool("stats", false, "also print database statistics")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	var snap trend.Snapshot
	if *fresh {
		posts, err := st.QueryPosts(store.Filter{})
		if err != nil {
			log.Fatalf("query: %v", err)
		}
		detector := trend.NewDetector(trend.Options{
			Window:         time.Duration(cfg.Trend.WindowDays) * 24 * time.Hour,
			Lookback:       time.Duration(cfg.Trend.LookbackDays) * 24 * time.Hour,
			MinOccurrences: cfg.Trend.MinOccurrences,
		})
		snap = detector.Detect(posts)
	} else {
		if _, err := st.LatestTrendSnapshot(&snap); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Fatal("no snapshot stored yet, run a hunt or pass -fresh")
			}
			log.Fatalf("load snapshot: %v", err)
		}
	}

	if *asJSON {
		out, _ := json.MarshalIndent(snap, "", "  ")
		os.Stdout.Write(append(out, '\n'))
		return
	}

	fmt.Printf("Trends as of %s (%d groups, window %s)\n\n",
		snap.GeneratedAt.Format(time.RFC3339), snap.Groups, snap.Window)

	printGroups("EMERGING", snap.Emerging, *topN)
	printGroups("DECLINING", snap.Declining, *topN)

	if *stats {
		dbStats, err := st.Stats()
		if err != nil {
			log.Fatalf("stats: %v", err)
		}
		fmt.Printf("Database: %d posts, %d analyses, %d pain points\n",
			dbStats.TotalPosts, dbStats.TotalAnalyses, dbStats.PainPoints)
		for source, n := range dbStats.PostsBySource {
			fmt.Printf("  %-14s %d\n", source, n)
		}
	}
}

func printGroups(heading string, groups []trend.Group, topN int) {
	fmt.Printf("%s (%d)\n", heading, len(groups))
	if len(groups) > topN {
		groups = groups[:topN]
	}
	for i, g := range groups {
		fmt.Printf("%2d. %s\n    total=%d recent=%d past=%d sources=%v\n",
			i+1, g.Label, g.Total, g.Recent, g.Past, g.Sources)
	}
	fmt.Println()
}
