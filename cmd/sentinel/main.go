package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/adapters/replay"
	"github.com/raaihank/mention-sentinel/internal/cache"
	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/metrics"
	"github.com/raaihank/mention-sentinel/internal/pipeline"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/server"
	"github.com/raaihank/mention-sentinel/internal/store"
	"github.com/raaihank/mention-sentinel/internal/websocket"
)

var (
	version = server.Version
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the /health endpoint at this base URL and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mention-sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting mention-sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	svc, err := initializeServices(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer svc.cleanup()

	orchestrator, err := svc.buildOrchestrator(cfg)
	if err != nil {
		log.Fatal("Failed to build pipeline", zap.Error(err))
	}

	opts := []server.Option{
		server.WithGatherer(svc.registry),
		server.WithQuarantine(svc.quarantineLister()),
	}
	if svc.hub != nil {
		opts = append(opts, server.WithHub(svc.hub))
	}
	if svc.reports != nil {
		opts = append(opts, server.WithReports(svc.reports))
	}

	srv, err := server.New(cfg, orchestrator, log, opts...)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if svc.hub != nil {
		go svc.hub.Run(ctx)
	}

	// Only the pipeline section and adapters are hot-swapped; server,
	// database and cache settings need a restart.
	loader.Watch(func(newCfg *config.Config) {
		next, err := svc.buildOrchestrator(newCfg)
		if err != nil {
			log.Error("Configuration reload rejected", zap.Error(err))
			return
		}
		srv.SetOrchestrator(next)
	}, func(err error) {
		log.Error("Configuration reload rejected", zap.Error(err))
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// in-flight scans may run up to the scan timeout
		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ScanTimeout+5*time.Second)
		defer stop()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}
		cancel()

		log.Info("Server shutdown complete")
	}
}

// services holds the long-lived collaborators shared by every orchestrator
// built during the process lifetime
type services struct {
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *store.Store
	reports  *cache.ReportCache
	hub      *websocket.Hub
	memory   *quarantine.MemoryStore
}

func initializeServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := &services{
		log:      log,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	if cfg.Database.Enabled {
		log.Info("Initializing result store...")
		s, err := store.New(cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize result store: %w", err)
		}
		svc.store = s
	} else {
		svc.memory = quarantine.NewMemoryStore()
	}

	if cfg.Cache.Enabled {
		log.Info("Initializing report cache...")
		rc, err := cache.New(cfg.Cache, log)
		if err != nil {
			svc.cleanup()
			return nil, fmt.Errorf("failed to initialize report cache: %w", err)
		}
		svc.reports = rc
	}

	if cfg.WebSocket.Enabled {
		svc.hub = websocket.NewHub(cfg.WebSocket, log)
	}

	return svc, nil
}

// buildOrchestrator wires adapters and sinks for one pipeline configuration
func (s *services) buildOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, error) {
	replays, err := replay.FromConfig(cfg.Adapters, s.log)
	if err != nil {
		return nil, err
	}
	adapters := make([]pipeline.Adapter, 0, len(replays))
	for _, a := range replays {
		adapters = append(adapters, a)
	}

	opts := []pipeline.Option{pipeline.WithMetrics(s.metrics)}
	if s.store != nil {
		opts = append(opts, pipeline.WithSink(s.store), pipeline.WithQuarantine(s.store))
	} else {
		opts = append(opts, pipeline.WithQuarantine(s.memory))
	}

	var observers []pipeline.Observer
	if s.reports != nil {
		observers = append(observers, s.reports)
	}
	if s.hub != nil {
		observers = append(observers, s.hub)
	}
	opts = append(opts, pipeline.WithObservers(observers...))

	return pipeline.New(cfg.Pipeline, adapters, s.log, opts...)
}

func (s *services) quarantineLister() server.QuarantineLister {
	if s.store != nil {
		return s.store
	}
	return s.memory
}

func (s *services) cleanup() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.reports != nil {
		_ = s.reports.Close()
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(baseURL string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
