package planner

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
	"github.com/FACorreiaa/go-travel-planner/internal/api/llm"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

type HandlerImpl struct {
	plannerService PlannerService
	logger         *slog.Logger
}

func NewHandlerImpl(plannerService PlannerService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		plannerService: plannerService,
		logger:         logger,
	}
}

// GeneratePlan handles POST /plan. With ?raw=true the provider document is
// returned untouched.
func (h *HandlerImpl) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "GeneratePlan", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/plan"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GeneratePlan"))

	var req types.TripRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "destination is required")
		return
	}

	raw, _ := strconv.ParseBool(r.URL.Query().Get("raw"))
	if raw {
		doc, err := h.plannerService.GenerateRaw(ctx, req)
		if err != nil {
			h.generationFailed(w, r, l, err)
			return
		}
		api.WriteRawJSON(w, r, http.StatusOK, []byte(doc))
		return
	}

	plan, err := h.plannerService.GeneratePlan(ctx, req)
	if err != nil {
		h.generationFailed(w, r, l, err)
		return
	}

	l.InfoContext(ctx, "Plan generated", slog.Int("days", len(plan.ItineraryByDay)))
	api.WriteJSONResponse(w, r, http.StatusOK, plan)
}

func (h *HandlerImpl) generationFailed(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	if !errors.Is(err, llm.ErrGenerationFailed) {
		l.ErrorContext(r.Context(), "Unexpected planner error", slog.Any("error", err))
	}
	api.ErrorResponse(w, r, http.StatusInternalServerError, llm.ErrGenerationFailed.Error())
}
