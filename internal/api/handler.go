// Package api implements the HTTP surface of the alerts service.
//
// Admin routes expect the x-user-role header forwarded by the Gateway, user
// routes the x-user-id header. Credentials are validated upstream.
//
// Routes:
//
//	GET  /health                                      → liveness
//	GET  /metrics                                     → prometheus
//	POST /admin/notifications/process-saved-searches  → run the saved-search pass now
//	POST /admin/notifications/send-deadline-alerts    → run the deadline cascade now
//	POST /saved-searches/{id}/execute                 → run one saved search for its owner
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/alerts"
	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/savedsearch"
	"naijaedu/alerts-service/internal/search"
)

const (
	headerUserID   = "x-user-id"
	headerUserRole = "x-user-role"
	roleAdmin      = "admin"

	defaultDaysBefore = 7
)

// SavedSearchRunner runs the saved-search pass.
type SavedSearchRunner interface {
	ProcessAll(ctx context.Context) (model.RunSummary, error)
}

// DeadlineRunner runs the deadline cascade.
type DeadlineRunner interface {
	SendDeadlineAlerts(ctx context.Context, daysBefore int) (model.DeadlineSummary, error)
}

// Executor runs one saved search on demand.
type Executor interface {
	Execute(ctx context.Context, userID, id string, limit int) (*search.Result, error)
}

// Handler holds shared dependencies.
type Handler struct {
	searches   SavedSearchRunner
	deadlines  DeadlineRunner
	executor   Executor
	runTimeout time.Duration
	version    string
	logger     *zap.Logger
}

// NewHandler returns a configured Handler. Admin-triggered runs get
// runTimeout, detached from the request so a dropped connection does not
// abort a half-finished pass.
func NewHandler(searches SavedSearchRunner, deadlines DeadlineRunner, executor Executor, runTimeout time.Duration, version string, logger *zap.Logger) *Handler {
	if runTimeout <= 0 {
		runTimeout = 30 * time.Minute
	}
	return &Handler{
		searches:   searches,
		deadlines:  deadlines,
		executor:   executor,
		runTimeout: runTimeout,
		version:    version,
		logger:     logger.Named("api"),
	}
}

// Routes returns the service router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/admin/notifications", func(ar chi.Router) {
		ar.Use(requireAdmin)
		ar.Post("/process-saved-searches", h.processSavedSearches)
		ar.Post("/send-deadline-alerts", h.sendDeadlineAlerts)
	})

	r.With(requireUser).Post("/saved-searches/{id}/execute", h.executeSavedSearch)
	return r
}

// ─── Middleware ──────────────────────────────────────────────────────────────

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerUserRole) != roleAdmin {
			jsonError(w, "admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerUserID) == "" {
			jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "alerts-service",
		"version": h.version,
	})
}

func (h *Handler) processSavedSearches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.runContext(r)
	defer cancel()

	sum, err := h.searches.ProcessAll(ctx)
	if err != nil {
		h.logger.Error("manual saved search run failed", zap.Error(err))
		jsonError(w, "could not load saved searches", http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{
		"message": fmt.Sprintf("processed %d saved searches", sum.Checked),
		"checked": sum.Checked,
		"sent":    sum.Sent,
		"failed":  sum.Failed,
		"skipped": sum.Skipped,
		"partial": sum.Partial,
	})
}

func (h *Handler) sendDeadlineAlerts(w http.ResponseWriter, r *http.Request) {
	days := defaultDaysBefore
	if raw := r.URL.Query().Get("days_before"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < alerts.MinDaysBefore || n > alerts.MaxDaysBefore {
			jsonError(w, fmt.Sprintf("days_before must be an integer between %d and %d", alerts.MinDaysBefore, alerts.MaxDaysBefore), http.StatusBadRequest)
			return
		}
		days = n
	}

	ctx, cancel := h.runContext(r)
	defer cancel()

	sum, err := h.deadlines.SendDeadlineAlerts(ctx, days)
	if errors.Is(err, alerts.ErrInvalidWindow) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("manual deadline run failed", zap.Error(err))
		jsonError(w, "could not load programs", http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{
		"message":  fmt.Sprintf("deadline alerts sent for %d programs", sum.Programs),
		"programs": sum.Programs,
		"sent":     sum.Sent,
		"failed":   sum.Failed,
		"partial":  sum.Partial,
	})
}

func (h *Handler) executeSavedSearch(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	id := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	res, err := h.executor.Execute(r.Context(), userID, id, limit)
	var ve *savedsearch.ValidationError
	switch {
	case errors.Is(err, savedsearch.ErrNotFound):
		jsonError(w, "saved search not found", http.StatusNotFound)
		return
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.logger.Error("execute saved search", zap.String("savedSearchId", id), zap.Error(err))
		jsonError(w, "search unavailable", http.StatusBadGateway)
		return
	}

	hits := res.Hits
	if hits == nil {
		hits = []model.IndexHit{}
	}
	jsonOK(w, map[string]any{
		"hits":   hits,
		"total":  res.Total,
		"tookMs": res.TookMs,
	})
}

func (h *Handler) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.runTimeout)
}

// ─── JSON helpers ────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
