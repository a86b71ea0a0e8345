package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api/geo"
	"github.com/FACorreiaa/go-travel-planner/internal/api/llm"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

var _ PlannerService = (*PlannerServiceImpl)(nil)

type PlannerService interface {
	// GeneratePlan returns a normalized plan, with origin/destination
	// coordinates and a driving route when the request names an origin.
	GeneratePlan(ctx context.Context, req types.TripRequest) (*types.PlanResult, error)
	// GenerateRaw returns the provider document without normalization.
	GenerateRaw(ctx context.Context, req types.TripRequest) (string, error)
}

type PlannerServiceImpl struct {
	generator  llm.GenerationService
	geoService geo.GeoService
	logger     *slog.Logger
}

func NewPlannerService(generator llm.GenerationService, geoService geo.GeoService, logger *slog.Logger) *PlannerServiceImpl {
	return &PlannerServiceImpl{
		generator:  generator,
		geoService: geoService,
		logger:     logger,
	}
}

func (s *PlannerServiceImpl) GenerateRaw(ctx context.Context, req types.TripRequest) (string, error) {
	doc, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error generating itinerary: %w", err)
	}
	return doc, nil
}

func (s *PlannerServiceImpl) GeneratePlan(ctx context.Context, req types.TripRequest) (*types.PlanResult, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "GeneratePlan", trace.WithAttributes(
		attribute.String("trip.destination", req.Destination),
		attribute.Bool("trip.has_origin", req.Origin != ""),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GeneratePlan"), slog.String("destination", req.Destination))

	doc, err := s.generator.Generate(ctx, req)
	if err != nil {
		l.ErrorContext(ctx, "Itinerary generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, fmt.Errorf("error generating itinerary: %w", err)
	}

	plan := NormalizeDocument(doc)
	l.DebugContext(ctx, "Itinerary normalized", slog.Int("days", len(plan.ItineraryByDay)))

	if origin := strings.TrimSpace(req.Origin); origin != "" {
		s.attachRoute(ctx, l, &plan, origin, req.Destination)
	}

	span.SetStatus(codes.Ok, "plan generated")
	return &plan, nil
}

// attachRoute augments plan in place. Lookup failures leave the plan as is.
func (s *PlannerServiceImpl) attachRoute(ctx context.Context, l *slog.Logger, plan *types.PlanResult, origin, destination string) {
	from, ok := s.geoService.SearchPlace(ctx, origin)
	if !ok {
		l.WarnContext(ctx, "Origin could not be geocoded, skipping route", slog.String("origin", origin))
		return
	}
	to, ok := s.geoService.SearchPlace(ctx, destination)
	if !ok {
		l.WarnContext(ctx, "Destination could not be geocoded, skipping route")
		return
	}
	plan.OriginLocation = from
	plan.DestinationLocation = to

	route, ok := s.geoService.GetRoute(ctx, from.Lat, from.Lng, to.Lat, to.Lng, s.geoService.DefaultTactics())
	if !ok {
		l.WarnContext(ctx, "Route lookup failed, returning plan without route")
		return
	}
	plan.RouteInfo = route
}
