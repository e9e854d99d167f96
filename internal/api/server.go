// Package api exposes the HTTP interface for the ingestion service.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/ingest and /v1/ingest/{source_id} for manual triggers.
//   - GET /v1/runs for the ingestion audit trail.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/ingest"
	"github.com/huanews/newsingest/internal/telemetry"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
	triggerTimeout   = 5 * time.Minute
	runsTimeout      = 3 * time.Second
)

// Trigger is the slice of the orchestrator the API drives.
type Trigger interface {
	IngestSource(ctx context.Context, sourceID int64) (ingest.RunSummary, error)
	RunAll(ctx context.Context) ([]ingest.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]ingest.RunRecord, error)
}

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router  chi.Router
	trigger Trigger
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(trigger Trigger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{trigger: trigger, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.ingestAll)
		r.Post("/ingest/{source_id}", s.ingestSource)
		r.Get("/runs", s.listRuns)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) ingestSource(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseInt(chi.URLParam(r, "source_id"), 10, 64)
	if err != nil || sourceID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), triggerTimeout)
	defer cancel()

	summary, err := s.trigger.IngestSource(ctx, sourceID)
	if err != nil {
		s.writeRunError(w, summary, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) ingestAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), triggerTimeout)
	defer cancel()

	summaries, err := s.trigger.RunAll(ctx)
	if err != nil {
		s.logger.Error("ingest-all sweep failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to ingest sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": summaries})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxRunsLimit {
			parsed = maxRunsLimit
		}
		limit = parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), runsTimeout)
	defer cancel()

	runs, err := s.trigger.ListRuns(ctx, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []ingest.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// writeRunError maps run failures onto HTTP statuses: unknown sources are
// 404, upstream feed problems are 502, everything else is 500. The summary
// is included so callers still see the run id and message.
func (s *Server) writeRunError(w http.ResponseWriter, summary ingest.RunSummary, err error) {
	var (
		robotsErr *ingest.RobotsDisallowedError
		fetchErr  *ingest.FetchError
		parseErr  *ingest.ParseError
	)
	switch {
	case errors.Is(err, ingest.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, "source not found or inactive")
	case errors.As(err, &robotsErr), errors.As(err, &fetchErr), errors.As(err, &parseErr):
		writeJSON(w, http.StatusBadGateway, summary)
	default:
		s.logger.Error("ingestion run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, summary)
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		telemetry.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, elapsed)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("elapsed", elapsed),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
