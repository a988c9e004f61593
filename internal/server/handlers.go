package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/cache"
	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/pipeline"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/stats"
)

const (
	maxRequestBody    = 1 << 20
	defaultListLimit  = 100
	maxListLimit      = 1000
	maxHistoryEntries = 100
)

type scanResponse struct {
	Summary string `json:"summary"`
	*pipeline.Result
}

type reportResponse struct {
	EntityName string                 `json:"entity_name"`
	Latest     *stats.ScanStatistics  `json:"latest"`
	History    []stats.ScanStatistics `json:"history,omitempty"`
}

type quarantineResponse struct {
	Count   int                 `json:"count"`
	Records []quarantine.Record `json:"records"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":             "mention-sentinel",
		"version":          Version,
		"uptime":           time.Since(s.startedAt).Round(time.Second).String(),
		"adapters":         s.orchestrator.Load().Adapters(),
		"min_confidence":   s.config.Pipeline.MinConfidence,
		"database_enabled": s.config.Database.Enabled,
		"cache_enabled":    s.config.Cache.Enabled,
	}
	if s.hub != nil {
		info["websocket"] = s.hub.GetStats()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleScan runs one scan synchronously and returns its result
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithRequestID(getRequestID(r.Context()))

	var req pipeline.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	if s.config.Server.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Server.ScanTimeout)
		defer cancel()
	}

	result, err := s.orchestrator.Load().Run(ctx, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("Scan failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "scan failed")
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{Summary: result.Stats.Summary(), Result: result})
}

// handleReport returns the latest cached report for an entity, optionally with history
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report cache disabled")
		return
	}

	entityName := mux.Vars(r)["entity"]
	latest, err := s.reports.LatestReport(r.Context(), entityName)
	if errors.Is(err, cache.ErrReportNotFound) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Report lookup failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "report lookup failed")
		return
	}

	resp := reportResponse{EntityName: latest.EntityName, Latest: latest}

	if raw := r.URL.Query().Get("history"); raw != "" {
		n, err := parseLimit(raw, maxHistoryEntries)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		history, err := s.reports.History(r.Context(), entityName, n)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "history lookup failed")
			return
		}
		resp.History = history
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleQuarantine lists quarantine records filtered by entity and stage
func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	if s.quarantine == nil {
		writeError(w, r, http.StatusServiceUnavailable, "quarantine listing disabled")
		return
	}

	q := r.URL.Query()
	filter := quarantine.Filter{EntityName: q.Get("entity"), Limit: defaultListLimit}

	if raw := q.Get("stage"); raw != "" {
		stage, err := mention.ParseStage(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Stage = stage
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := parseLimit(raw, maxListLimit)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Limit = n
	}

	records, err := s.quarantine.List(r.Context(), filter)
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Quarantine listing failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "quarantine listing failed")
		return
	}
	if records == nil {
		records = []quarantine.Record{}
	}

	writeJSON(w, http.StatusOK, quarantineResponse{Count: len(records), Records: records})
}

func parseLimit(raw string, ceiling int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: getRequestID(r.Context())})
}
