package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/api"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/middleware"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/ratelimit"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/services"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/utils"
)

// AlertEngine is the part of the alert service the HTTP layer drives
type AlertEngine interface {
	Feed(ctx context.Context, viewer services.Viewer) (alerts.Feed, error)
	Counts(ctx context.Context, viewer services.Viewer) (alerts.Counts, error)
	MarkViewed(ctx context.Context, id, actor string) (*database.AlertInstance, error)
	Resolve(ctx context.Context, id, actor string) (*database.AlertInstance, error)
	Discard(ctx context.Context, id, actor string) (*database.AlertInstance, error)
	Dismiss(viewer, id string)
	Undismiss(viewer, id string)
	Run(ctx context.Context) (alerts.Delta, error)
	ListTriggers(ctx context.Context) ([]database.AlertTrigger, error)
	UpdateTrigger(ctx context.Context, triggerType string, update services.TriggerUpdate) (*database.AlertTrigger, error)
}

// AlertsHandler serves the unified alert feed and its actions
type AlertsHandler struct {
	engine  AlertEngine
	runsLim *ratelimit.Keyed
}

// NewAlertsHandler creates an alerts handler. runsPerMinute bounds manual
// refreshes per user.
func NewAlertsHandler(engine AlertEngine, runsPerMinute int) *AlertsHandler {
	if runsPerMinute <= 0 {
		runsPerMinute = 6
	}
	return &AlertsHandler{
		engine:  engine,
		runsLim: ratelimit.PerMinute(runsPerMinute),
	}
}

// SetupRoutes configures the alert routes
func (h *AlertsHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/alerts", h.handleFeed)
	mux.HandleFunc("GET /api/alerts/counts", h.handleCounts)
	mux.HandleFunc("POST /api/alerts/run", h.handleRun)
	mux.HandleFunc("POST /api/alerts/{id}/view", h.handleView)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", h.handleResolve)
	mux.HandleFunc("POST /api/alerts/{id}/discard", h.handleDiscard)
	mux.HandleFunc("POST /api/alerts/live/{id}/dismiss", h.handleDismiss)
	mux.HandleFunc("DELETE /api/alerts/live/{id}/dismiss", h.handleUndismiss)

	mux.Handle("GET /api/alert-triggers", middleware.RequireRole(http.HandlerFunc(h.handleListTriggers), alerts.RoleAdmin))
	mux.Handle("PUT /api/alert-triggers/{type}", middleware.RequireRole(http.HandlerFunc(h.handleUpdateTrigger), alerts.RoleAdmin))
}

// viewerFromRequest returns the caller, or writes a 401
func viewerFromRequest(w http.ResponseWriter, r *http.Request) (services.Viewer, bool) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		api.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return services.Viewer{}, false
	}
	return services.Viewer{Username: user.Username, Role: user.Role}, true
}

// ========== Feed ==========

// handleFeed handles GET /api/alerts
func (h *AlertsHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	feed, err := h.engine.Feed(r.Context(), viewer)
	if err != nil {
		logger.Error("failed to build alert feed", zap.String("viewer", viewer.Username), zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to load alerts")
		return
	}

	items := feed.ForModule(r.URL.Query().Get("module"))
	p := api.ParsePagination(r)
	api.RespondJSON(w, http.StatusOK, api.FeedResponse{
		Alerts:     api.Paginate(items, p),
		Counts:     feed.Counts,
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      len(items),
		TotalPages: p.TotalPages(int64(len(items))),
	})
}

// handleCounts handles GET /api/alerts/counts
func (h *AlertsHandler) handleCounts(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	counts, err := h.engine.Counts(r.Context(), viewer)
	if err != nil {
		logger.Error("failed to count alerts", zap.String("viewer", viewer.Username), zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to count alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, counts)
}

// ========== Persistent alert lifecycle ==========

type transitionFunc func(ctx context.Context, id, actor string) (*database.AlertInstance, error)

func (h *AlertsHandler) handleView(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.engine.MarkViewed)
}

func (h *AlertsHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.engine.Resolve)
}

func (h *AlertsHandler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.engine.Discard)
}

func (h *AlertsHandler) handleTransition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := utils.ValidateInstanceID(id); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := apply(r.Context(), id, viewer.Username)
	switch {
	case errors.Is(err, database.ErrInstanceNotFound):
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, "Alert not found")
	case errors.Is(err, database.ErrInvalidTransition):
		api.RespondErrorWithCode(w, http.StatusConflict, api.CodeInvalidTransition, "Alert cannot move to the requested state")
	case err != nil:
		logger.Error("failed to update alert", zap.String("id", id), zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to update alert")
	default:
		api.RespondJSON(w, http.StatusOK, api.InstanceToResponse(*inst))
	}
}

// ========== Live alert dismissal ==========

func (h *AlertsHandler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := liveAlertRequest(w, r)
	if !ok {
		return
	}
	h.engine.Dismiss(viewer.Username, id)
	api.RespondNoContent(w)
}

func (h *AlertsHandler) handleUndismiss(w http.ResponseWriter, r *http.Request) {
	viewer, id, ok := liveAlertRequest(w, r)
	if !ok {
		return
	}
	h.engine.Undismiss(viewer.Username, id)
	api.RespondNoContent(w)
}

func liveAlertRequest(w http.ResponseWriter, r *http.Request) (services.Viewer, string, bool) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return viewer, "", false
	}
	id := r.PathValue("id")
	if err := utils.ValidateLiveAlertID(id); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return viewer, "", false
	}
	return viewer, id, true
}

// ========== Manual refresh ==========

// handleRun handles POST /api/alerts/run
func (h *AlertsHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	lim := h.runsLim.Get(viewer.Username)
	if !lim.Allow() {
		retry := int(math.Ceil(lim.RetryAfter().Seconds()))
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		api.RespondErrorWithCode(w, http.StatusTooManyRequests, api.CodeRateLimited, "Too many refresh requests")
		return
	}

	delta, err := h.engine.Run(r.Context())
	if err != nil {
		logger.Error("manual alert refresh failed", zap.String("viewer", viewer.Username), zap.Error(err))
		api.RespondError(w, http.StatusBadGateway, "Alert refresh failed")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.DeltaToRunResponse(delta))
}

// ========== Trigger administration ==========

// handleListTriggers handles GET /api/alert-triggers
func (h *AlertsHandler) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.engine.ListTriggers(r.Context())
	if err != nil {
		logger.Error("failed to list alert triggers", zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alert triggers")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.TriggersToResponses(triggers))
}

// handleUpdateTrigger handles PUT /api/alert-triggers/{type}
func (h *AlertsHandler) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	triggerType := r.PathValue("type")
	if err := utils.ValidateTriggerType(triggerType); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req api.UpdateTriggerRequest
	fieldErrs, err := api.DecodeAndValidate(r, &req)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	update := services.TriggerUpdate{
		Active:        req.Active,
		ThresholdDays: req.ThresholdDays,
		TargetRoles:   req.TargetRoles,
	}
	if req.Priority != nil {
		p := database.Priority(*req.Priority)
		update.Priority = &p
	}

	trigger, err := h.engine.UpdateTrigger(r.Context(), triggerType, update)
	if errors.Is(err, services.ErrUnknownTrigger) {
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, "Unknown trigger type")
		return
	}
	if errors.Is(err, services.ErrInvalidTriggerUpdate) {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if err != nil {
		logger.Error("failed to update alert trigger", zap.String("trigger_type", triggerType), zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to update alert trigger")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.TriggerToResponse(*trigger))
}
