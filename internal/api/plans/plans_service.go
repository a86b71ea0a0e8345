package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api/llm"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

var _ PlansService = (*PlansServiceImpl)(nil)

type PlansService interface {
	ListPlans(ctx context.Context, userID uuid.UUID) ([]types.TravelPlan, error)
	GetPlan(ctx context.Context, userID, planID uuid.UUID) (*types.TravelPlan, error)
	CreatePlan(ctx context.Context, userID uuid.UUID, req types.CreatePlanRequest) (*types.TravelPlan, error)
	DeletePlan(ctx context.Context, userID, planID uuid.UUID) error
}

type PlansServiceImpl struct {
	logger *slog.Logger
	repo   PlansRepository
}

func NewPlansService(repo PlansRepository, logger *slog.Logger) *PlansServiceImpl {
	return &PlansServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *PlansServiceImpl) ListPlans(ctx context.Context, userID uuid.UUID) ([]types.TravelPlan, error) {
	ctx, span := otel.Tracer("PlansService").Start(ctx, "ListPlans", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	plans, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list plans")
		return nil, fmt.Errorf("error fetching plans: %w", err)
	}
	span.SetStatus(codes.Ok, "Plans listed")
	return plans, nil
}

func (s *PlansServiceImpl) GetPlan(ctx context.Context, userID, planID uuid.UUID) (*types.TravelPlan, error) {
	plan, err := s.repo.Get(ctx, userID, planID)
	if err != nil {
		return nil, fmt.Errorf("error fetching plan: %w", err)
	}
	return plan, nil
}

// CreatePlan fills in defaults: title falls back to the destination and then
// to a placeholder; language defaults to Chinese; plan data to an empty object.
func (s *PlansServiceImpl) CreatePlan(ctx context.Context, userID uuid.UUID, req types.CreatePlanRequest) (*types.TravelPlan, error) {
	ctx, span := otel.Tracer("PlansService").Start(ctx, "CreatePlan", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreatePlan"), slog.String("userID", userID.String()))

	params, err := withPlanDefaults(req)
	if err != nil {
		span.SetStatus(codes.Error, "invalid plan")
		return nil, err
	}

	plan, err := s.repo.Create(ctx, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create plan", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create plan")
		return nil, fmt.Errorf("error creating plan: %w", err)
	}

	l.InfoContext(ctx, "Plan saved", slog.String("planID", plan.ID.String()))
	span.SetStatus(codes.Ok, "Plan created")
	return plan, nil
}

func (s *PlansServiceImpl) DeletePlan(ctx context.Context, userID, planID uuid.UUID) error {
	ctx, span := otel.Tracer("PlansService").Start(ctx, "DeletePlan", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("plan.id", planID.String()),
	))
	defer span.End()

	if err := s.repo.SoftDelete(ctx, userID, planID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete plan")
		return fmt.Errorf("error deleting plan: %w", err)
	}
	s.logger.InfoContext(ctx, "Plan deactivated", slog.String("planID", planID.String()))
	span.SetStatus(codes.Ok, "Plan deleted")
	return nil
}

func withPlanDefaults(req types.CreatePlanRequest) (types.CreatePlanRequest, error) {
	req.Destination = strings.TrimSpace(req.Destination)
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title != "":
	case req.Destination != "":
		req.Title = req.Destination
	default:
		req.Title = types.DefaultPlanTitle
	}
	if req.Language == "" {
		req.Language = llm.DefaultLanguage
	}
	if req.Preferences == nil {
		req.Preferences = types.Preferences{}
	}
	// zero and negative trip parameters are stored as unknown
	if req.Days != nil && *req.Days <= 0 {
		req.Days = nil
	}
	if req.Travelers != nil && *req.Travelers <= 0 {
		req.Travelers = nil
	}
	if req.Budget != nil && *req.Budget == 0 {
		req.Budget = nil
	}
	if len(req.PlanData) == 0 || string(req.PlanData) == "null" {
		req.PlanData = json.RawMessage(`{}`)
	} else if !json.Valid(req.PlanData) {
		return req, fmt.Errorf("planData is not valid JSON: %w", types.ErrInvalidInput)
	}
	return req, nil
}
