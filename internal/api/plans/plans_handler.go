package plans

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
	"github.com/FACorreiaa/go-travel-planner/internal/api/auth"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

type HandlerImpl struct {
	plansService PlansService
	logger       *slog.Logger
}

func NewHandlerImpl(plansService PlansService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		plansService: plansService,
		logger:       logger,
	}
}

func (h *HandlerImpl) ListPlans(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlansHandler").Start(r.Context(), "ListPlans", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/plans"),
	))
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(semconv.EnduserIDKey.String(userID.String()))

	plans, err := h.plansService.ListPlans(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list plans", slog.String("handler", "ListPlans"), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlansResponse{Plans: plans})
}

func (h *HandlerImpl) CreatePlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlansHandler").Start(r.Context(), "CreatePlan", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/plans"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreatePlan"))

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(semconv.EnduserIDKey.String(userID.String()))

	var req types.CreatePlanRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.plansService.CreatePlan(ctx, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Failed to save plan", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.PlanResponse{Plan: plan})
}

// DeletePlan soft-deletes the plan named by the id query parameter.
func (h *HandlerImpl) DeletePlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlansHandler").Start(r.Context(), "DeletePlan", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/plans"),
	))
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}

	idParam := r.URL.Query().Get("id")
	if idParam == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Plan ID required")
		return
	}
	planID, err := uuid.Parse(idParam)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid plan ID format")
		return
	}

	if err := h.plansService.DeletePlan(ctx, userID, planID); err != nil {
		h.logger.ErrorContext(ctx, "Failed to delete plan", slog.String("handler", "DeletePlan"), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.SuccessResponse{Success: true})
}
