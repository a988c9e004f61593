package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/adapters/replay"
	"github.com/raaihank/mention-sentinel/internal/cache"
	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/pipeline"
	"github.com/raaihank/mention-sentinel/internal/stats"
	"github.com/raaihank/mention-sentinel/internal/store"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Configuration file path")
		entityName    = flag.String("entity", "", "Entity to scan for")
		inputFile     = flag.String("input", "", "Replay file (CSV, Parquet or JSON lines) added to the configured adapters")
		platform      = flag.String("platform", "", "Platform label for --input records that carry none")
		minConfidence = flag.Float64("min-confidence", 0, "Override the configured confidence threshold")
		dryRun        = flag.Bool("dry-run", false, "Dry run - don't write to database or cache")
		jsonOutput    = flag.Bool("json", false, "Print the full statistics as JSON")
		showStats     = flag.Bool("stats", false, "Show database statistics and exit")
	)
	flag.Parse()

	if *entityName == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --entity \"Jane Smith\" --input mentions.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --entity \"Jane Smith\" --config configs/config.yaml --min-confidence 0.8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling scan...")
		cancel()
	}()

	if *dryRun {
		cfg.Database.Enabled = false
		cfg.Cache.Enabled = false
	}

	if *showStats {
		if err := showDatabaseStats(ctx, cfg, log); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
		return
	}

	if *inputFile != "" {
		cfg.Adapters = append(cfg.Adapters, config.AdapterConfig{
			Name:     "input",
			Type:     "replay",
			Path:     *inputFile,
			Platform: *platform,
			Enabled:  true,
		})
	}

	result, err := runScan(ctx, cfg, pipeline.Request{EntityName: *entityName, MinConfidence: *minConfidence}, log)
	if err != nil {
		log.Fatal("Scan failed", zap.Error(err))
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Stats); err != nil {
			log.Fatal("Failed to encode statistics", zap.Error(err))
		}
		return
	}
	printStatistics(result.Stats)
}

// runScan builds a one-shot orchestrator from cfg and scans one entity
func runScan(ctx context.Context, cfg *config.Config, req pipeline.Request, log *logger.Logger) (*pipeline.Result, error) {
	replays, err := replay.FromConfig(cfg.Adapters, log)
	if err != nil {
		return nil, err
	}
	adapters := make([]pipeline.Adapter, 0, len(replays))
	for _, a := range replays {
		adapters = append(adapters, a)
	}

	var opts []pipeline.Option
	if cfg.Database.Enabled {
		s, err := store.New(cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize result store: %w", err)
		}
		defer s.Close()
		opts = append(opts, pipeline.WithSink(s), pipeline.WithQuarantine(s))
	}
	if cfg.Cache.Enabled {
		rc, err := cache.New(cfg.Cache, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report cache: %w", err)
		}
		defer rc.Close()
		opts = append(opts, pipeline.WithObservers(rc))
	}

	orchestrator, err := pipeline.New(cfg.Pipeline, adapters, log, opts...)
	if err != nil {
		return nil, err
	}
	return orchestrator.Run(ctx, req)
}

func printStatistics(s stats.ScanStatistics) {
	fmt.Printf("\n=== Scan: %s (run %s) ===\n", s.EntityName, s.RunID)
	fmt.Printf("%s\n\n", s.Summary())
	fmt.Printf("Items seen:         %d\n", s.Total)
	fmt.Printf("Matched:            %d (%.1f%%)\n", s.Matched, s.PrecisionRate()*100)
	fmt.Printf("Accepted:           %d\n", s.Accepted)
	fmt.Printf("Quarantined:        %d\n", s.Quarantined)
	fmt.Printf("Discarded:          %d\n", s.Discarded)
	fmt.Printf("Duration:           %v\n", s.Duration)

	if len(s.ConfidenceBreakdown) > 0 {
		fmt.Printf("\n=== Confidence Breakdown ===\n")
		for mt, n := range s.ConfidenceBreakdown {
			fmt.Printf("%-19s %d\n", string(mt)+":", n)
		}
	}
	if len(s.QuarantineByStage) > 0 {
		fmt.Printf("\n=== Quarantine By Stage ===\n")
		printCounts(s.QuarantineByStage)
	}
	if len(s.AdapterFailures) > 0 {
		fmt.Printf("\n=== Adapter Failures ===\n")
		for name, reason := range s.AdapterFailures {
			fmt.Printf("%-19s %s\n", name+":", reason)
		}
	}
	if s.SinkErrors > 0 || s.QuarantineErrors > 0 {
		fmt.Printf("\nSink errors: %d, quarantine write errors: %d\n", s.SinkErrors, s.QuarantineErrors)
	}
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-19s %d\n", k+":", counts[k])
	}
}

// showDatabaseStats displays current database statistics
func showDatabaseStats(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.Database.Enabled {
		return fmt.Errorf("database is not enabled")
	}

	s, err := store.New(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize result store: %w", err)
	}
	defer s.Close()

	st, err := s.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get database stats: %w", err)
	}

	fmt.Printf("\n=== mention-sentinel Database Statistics ===\n")
	fmt.Printf("Accepted results:   %d\n", st.Results)
	fmt.Printf("Quarantined:        %d\n", st.Quarantined)
	for stage, n := range st.QuarantineByStage {
		fmt.Printf("  %-17s %d\n", stage+":", n)
	}
	return nil
}
