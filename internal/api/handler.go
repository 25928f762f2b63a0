// Package api exposes the claim operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/harrier/internal/claims"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	claims  *claims.Service
	engine  *rules.Engine
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	log     *slog.Logger
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		claims:  deps.Claims,
		engine:  deps.Engine,
		repo:    deps.Repo,
		cache:   deps.Cache,
		bus:     deps.Bus,
		log:     logger,
		version: deps.Version,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// QueuedResponse is returned when a claim is accepted for async processing.
type QueuedResponse struct {
	ClaimID string `json:"claimId"`
	Status  string `json:"status"`
	TraceID string `json:"traceId,omitempty"`
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rulesLoaded := 0
	if h.engine != nil {
		rulesLoaded = h.engine.RulesCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"version":     h.version,
		"customRules": rulesLoaded,
	})
}

// Ready pings the storage, cache and bus and returns 503 when any is down.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	ready := true

	ping := func(name string, fn func() error) {
		if err := fn(); err != nil {
			checks[name] = err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}
	if h.repo != nil {
		ping("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		ping("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		ping("eventBus", func() error { return h.bus.Ping(ctx) })
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

// SubmitClaim handles POST /claims.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req claims.SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	claim, err := h.claims.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// SubmitAndProcess handles POST /claims/submit-and-process.
func (h *Handler) SubmitAndProcess(w http.ResponseWriter, r *http.Request) {
	var req claims.SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.claims.SubmitAndProcess(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeResult(w, result)
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// GetStatus handles GET /claims/{id}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.claims.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateStatus handles PUT /claims/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req claims.StatusUpdate
	if !h.decode(w, r, &req) {
		return
	}

	claim, err := h.claims.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim.View())
}

// AddDocument handles POST /claims/{id}/documents.
func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req claims.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc, err := h.claims.AddDocument(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// ProcessClaim handles POST /claims/{id}/process. With ?async=true the
// claim is queued for the worker and 202 is returned.
func (h *Handler) ProcessClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "async must be a boolean"})
			return
		}
		async = parsed
	}

	if async {
		if err := h.claims.Enqueue(ctx, claimID); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, QueuedResponse{
			ClaimID: claimID,
			Status:  "queued",
			TraceID: GetTraceID(ctx),
		})
		return
	}

	result, err := h.claims.Process(ctx, claimID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeResult(w, result)
}

// ListDecisions handles GET /claims/{id}/decisions.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.claims.Decisions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// ListNotifications handles GET /claims/{id}/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.claims.Notifications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// ListClaimantClaims handles GET /claimants/{claimantId}/claims.
func (h *Handler) ListClaimantClaims(w http.ResponseWriter, r *http.Request) {
	list, err := h.claims.ListByClaimant(r.Context(), chi.URLParam(r, "claimantId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claims": list,
		"count":  len(list),
	})
}

// decode reads a JSON body into v and writes 400 when it cannot.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON request body"})
		return false
	}
	return true
}

// writeResult sends a pipeline result, as 500 when the run failed.
func writeResult(w http.ResponseWriter, result *domain.ProcessingResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// writeError maps service errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrClaimFinalized),
		errors.Is(err, domain.ErrClaimInProgress),
		errors.Is(err, domain.ErrClaimLocked),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
