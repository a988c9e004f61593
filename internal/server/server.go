package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/pipeline"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/stats"
	"github.com/raaihank/mention-sentinel/internal/web"
	"github.com/raaihank/mention-sentinel/internal/websocket"
)

// Version is reported by /info
const Version = "0.1.0"

// ReportSource looks up cached run reports
type ReportSource interface {
	LatestReport(ctx context.Context, entityName string) (*stats.ScanStatistics, error)
	History(ctx context.Context, entityName string, limit int) ([]stats.ScanStatistics, error)
}

// QuarantineLister lists held-back items
type QuarantineLister interface {
	List(ctx context.Context, f quarantine.Filter) ([]quarantine.Record, error)
}

// Server is the admin HTTP surface: scan triggering, report and quarantine
// lookup, metrics and the live event stream
type Server struct {
	config       *config.Config
	logger       *logger.Logger
	router       *mux.Router
	server       *http.Server
	orchestrator atomic.Pointer[pipeline.Orchestrator]
	hub          *websocket.Hub
	reports      ReportSource
	quarantine   QuarantineLister
	gatherer     prometheus.Gatherer
	startedAt    time.Time
}

// Option configures optional server collaborators
type Option func(*Server)

// WithHub serves the live event stream
func WithHub(hub *websocket.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithReports enables report lookup
func WithReports(r ReportSource) Option {
	return func(s *Server) { s.reports = r }
}

// WithQuarantine enables quarantine listing
func WithQuarantine(q QuarantineLister) Option {
	return func(s *Server) { s.quarantine = q }
}

// WithGatherer exposes the given registry on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a new admin server
func New(cfg *config.Config, orchestrator *pipeline.Orchestrator, log *logger.Logger, opts ...Option) (*Server, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("server requires an orchestrator")
	}

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		router:    mux.NewRouter(),
		gatherer:  prometheus.DefaultGatherer,
		startedAt: time.Now(),
	}
	s.orchestrator.Store(orchestrator)
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if s.hub != nil && s.config.WebSocket.Enabled {
		dashboard := web.Dashboard(s.config.WebSocket.Path)
		s.router.HandleFunc("/", dashboard).Methods(http.MethodGet)
		s.router.HandleFunc("/dashboard", dashboard).Methods(http.MethodGet)
		s.router.HandleFunc(s.config.WebSocket.Path, s.hub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/scans", s.handleScan).Methods(http.MethodPost)
	api.HandleFunc("/reports/{entity}", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/quarantine", s.handleQuarantine).Methods(http.MethodGet)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetOrchestrator swaps the orchestrator used for new scans. Runs already
// in flight keep the one they started with.
func (s *Server) SetOrchestrator(o *pipeline.Orchestrator) {
	if o == nil {
		return
	}
	s.orchestrator.Store(o)
	s.logger.Info("Pipeline configuration swapped", zap.Strings("adapters", o.Adapters()))
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting mention-sentinel admin server",
		zap.Int("port", s.config.Server.Port),
		zap.Strings("adapters", s.orchestrator.Load().Adapters()),
		zap.Bool("websocket", s.hub != nil && s.config.WebSocket.Enabled),
		zap.Bool("reports", s.reports != nil))

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping mention-sentinel admin server")
	return s.server.Shutdown(ctx)
}
