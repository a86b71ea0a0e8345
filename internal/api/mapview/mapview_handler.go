package mapview

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
	"github.com/FACorreiaa/go-travel-planner/internal/api/auth"
	"github.com/FACorreiaa/go-travel-planner/internal/api/planner"
	"github.com/FACorreiaa/go-travel-planner/internal/api/plans"
)

type HandlerImpl struct {
	plansService plans.PlansService
	logger       *slog.Logger
}

func NewHandlerImpl(plansService plans.PlansService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		plansService: plansService,
		logger:       logger,
	}
}

// PlanMap serves a saved plan as GeoJSON.
func (h *HandlerImpl) PlanMap(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("MapViewHandler").Start(r.Context(), "PlanMap", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/plans/map"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "PlanMap"))

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

	plan, err := h.plansService.GetPlan(ctx, userID, planID)
	if err != nil {
		l.WarnContext(ctx, "Failed to load plan for map", slog.String("planID", planID.String()), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}

	fc := Render(planner.NormalizeSaved(plan.PlanData))
	span.SetAttributes(attribute.Int("geojson.features", len(fc.Features)))

	body, err := fc.MarshalJSON()
	if err != nil {
		l.ErrorContext(ctx, "Failed to encode GeoJSON", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to render map")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		l.ErrorContext(ctx, "Failed to write GeoJSON", slog.Any("error", err))
	}
}
