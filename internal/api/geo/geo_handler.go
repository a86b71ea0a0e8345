package geo

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

type HandlerImpl struct {
	geoService GeoService
	logger     *slog.Logger
}

func NewHandlerImpl(geoService GeoService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		geoService: geoService,
		logger:     logger,
	}
}

// ResolveRoute geocodes origin and destination and looks up the driving route
// between them. A failed route lookup still returns both locations.
func (h *HandlerImpl) ResolveRoute(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("GeoHandler").Start(r.Context(), "ResolveRoute", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/route"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "ResolveRoute"))

	var req types.RouteRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Origin == "" || req.Destination == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "origin and destination are required")
		return
	}

	origin, ok := h.geoService.SearchPlace(ctx, req.Origin)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("无法找到出发地: %s", req.Origin))
		return
	}
	destination, ok := h.geoService.SearchPlace(ctx, req.Destination)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("无法找到目的地: %s", req.Destination))
		return
	}

	route, ok := h.geoService.GetRoute(ctx, origin.Lat, origin.Lng, destination.Lat, destination.Lng, h.geoService.DefaultTactics())
	if !ok {
		l.InfoContext(ctx, "Returning locations without route info")
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.RouteResponse{
		OriginLocation:      origin,
		DestinationLocation: destination,
		RouteInfo:           route,
	})
}
