package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api/reconcile"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

var _ ExpensesService = (*ExpensesServiceImpl)(nil)

var ErrSyncStopped = errors.New("expense sync is shutting down")

type ExpensesService interface {
	ListExpenses(ctx context.Context, userID, planID uuid.UUID) ([]types.Expense, error)
	CreateExpense(ctx context.Context, userID uuid.UUID, params types.ExpenseParams) (*types.Expense, error)
	UpdateExpense(ctx context.Context, userID, expenseID uuid.UUID, params types.ExpenseParams) (*types.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error
	// SyncExpenses reconciles immediately. On partial failure the response is
	// still returned alongside the error.
	SyncExpenses(ctx context.Context, userID uuid.UUID, req types.SyncExpensesRequest) (*types.SyncExpensesResponse, error)
	// ScheduleSync queues a debounced reconciliation for the plan.
	ScheduleSync(userID uuid.UUID, req types.SyncExpensesRequest) error
}

type ExpensesServiceImpl struct {
	logger     *slog.Logger
	repo       ExpensesRepository
	reconciler *reconcile.Reconciler
	debouncer  *reconcile.Debouncer
}

func NewExpensesService(repo ExpensesRepository, reconciler *reconcile.Reconciler, debouncer *reconcile.Debouncer, logger *slog.Logger) *ExpensesServiceImpl {
	return &ExpensesServiceImpl{
		logger:     logger,
		repo:       repo,
		reconciler: reconciler,
		debouncer:  debouncer,
	}
}

func (s *ExpensesServiceImpl) ListExpenses(ctx context.Context, userID, planID uuid.UUID) ([]types.Expense, error) {
	ctx, span := otel.Tracer("ExpensesService").Start(ctx, "ListExpenses", trace.WithAttributes(
		attribute.String("plan.id", planID.String()),
	))
	defer span.End()

	expenses, err := s.repo.ListByPlan(ctx, userID, planID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list expenses")
		return nil, fmt.Errorf("error fetching expenses: %w", err)
	}
	span.SetStatus(codes.Ok, "Expenses listed")
	return expenses, nil
}

func (s *ExpensesServiceImpl) CreateExpense(ctx context.Context, userID uuid.UUID, params types.ExpenseParams) (*types.Expense, error) {
	ctx, span := otel.Tracer("ExpensesService").Start(ctx, "CreateExpense")
	defer span.End()

	planID, err := uuid.Parse(strings.TrimSpace(params.PlanID))
	if err != nil {
		span.SetStatus(codes.Error, "invalid plan id")
		return nil, fmt.Errorf("planId %q: %w", params.PlanID, types.ErrInvalidInput)
	}
	e, err := expenseFromParams(params)
	if err != nil {
		span.SetStatus(codes.Error, "invalid expense")
		return nil, err
	}

	created, err := s.repo.Create(ctx, userID, planID, e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create expense")
		return nil, fmt.Errorf("error creating expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense created",
		slog.String("method", "CreateExpense"),
		slog.String("expenseID", created.ID),
		slog.String("planID", planID.String()))
	span.SetStatus(codes.Ok, "Expense created")
	return created, nil
}

func (s *ExpensesServiceImpl) UpdateExpense(ctx context.Context, userID, expenseID uuid.UUID, params types.ExpenseParams) (*types.Expense, error) {
	ctx, span := otel.Tracer("ExpensesService").Start(ctx, "UpdateExpense", trace.WithAttributes(
		attribute.String("expense.id", expenseID.String()),
	))
	defer span.End()

	e, err := expenseFromParams(params)
	if err != nil {
		span.SetStatus(codes.Error, "invalid expense")
		return nil, err
	}
	updated, err := s.repo.Update(ctx, userID, expenseID, e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update expense")
		return nil, fmt.Errorf("error updating expense: %w", err)
	}
	span.SetStatus(codes.Ok, "Expense updated")
	return updated, nil
}

func (s *ExpensesServiceImpl) DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error {
	ctx, span := otel.Tracer("ExpensesService").Start(ctx, "DeleteExpense", trace.WithAttributes(
		attribute.String("expense.id", expenseID.String()),
	))
	defer span.End()

	if err := s.repo.Delete(ctx, userID, expenseID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete expense")
		return fmt.Errorf("error deleting expense: %w", err)
	}
	span.SetStatus(codes.Ok, "Expense deleted")
	return nil
}

func (s *ExpensesServiceImpl) SyncExpenses(ctx context.Context, userID uuid.UUID, req types.SyncExpensesRequest) (*types.SyncExpensesResponse, error) {
	ctx, span := otel.Tracer("ExpensesService").Start(ctx, "SyncExpenses", trace.WithAttributes(
		attribute.String("plan.id", req.PlanID),
	))
	defer span.End()

	planID, local, err := prepareSync(req)
	if err != nil {
		span.SetStatus(codes.Error, "invalid sync request")
		return nil, err
	}

	res, err := s.reconciler.Reconcile(ctx, userID, planID, local)
	if err != nil && res.Expenses == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		return nil, fmt.Errorf("error syncing expenses: %w", err)
	}
	resp := &types.SyncExpensesResponse{
		Expenses: res.Expenses,
		Deleted:  res.Deleted,
		Updated:  res.Updated,
		Inserted: res.Inserted,
		Failed:   res.Failed,
	}
	if err != nil {
		span.SetStatus(codes.Error, "partial sync")
		return resp, fmt.Errorf("error syncing expenses: %w", err)
	}
	span.SetStatus(codes.Ok, "Expenses synced")
	return resp, nil
}

func (s *ExpensesServiceImpl) ScheduleSync(userID uuid.UUID, req types.SyncExpensesRequest) error {
	planID, local, err := prepareSync(req)
	if err != nil {
		return err
	}

	l := s.logger.With(slog.String("method", "ScheduleSync"), slog.String("planID", planID.String()))
	key := userID.String() + "/" + planID.String()
	scheduled := s.debouncer.Schedule(key, func(ctx context.Context) {
		if _, err := s.reconciler.Reconcile(ctx, userID, planID, local); err != nil {
			l.WarnContext(ctx, "Debounced expense sync finished with errors", slog.Any("error", err))
		}
	})
	if !scheduled {
		return ErrSyncStopped
	}
	l.Debug("Expense sync scheduled", slog.Int("count", len(local)))
	return nil
}

func prepareSync(req types.SyncExpensesRequest) (uuid.UUID, []types.Expense, error) {
	planID, err := uuid.Parse(strings.TrimSpace(req.PlanID))
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("planId %q: %w", req.PlanID, types.ErrInvalidInput)
	}
	local := make([]types.Expense, 0, len(req.Expenses))
	for _, e := range req.Expenses {
		e.Title = strings.TrimSpace(e.Title)
		e.AmountCNY = roundAmount(e.AmountCNY)
		e.Category = types.ParseExpenseCategory(string(e.Category))
		date, err := normalizeDate(e.Date)
		if err != nil {
			return uuid.Nil, nil, err
		}
		e.Date = date
		local = append(local, e)
	}
	return planID, local, nil
}

func expenseFromParams(params types.ExpenseParams) (types.Expense, error) {
	date, err := normalizeDate(params.ExpenseDate)
	if err != nil {
		return types.Expense{}, err
	}
	return types.Expense{
		Category:  types.ParseExpenseCategory(params.Category),
		Title:     strings.TrimSpace(params.Notes),
		AmountCNY: roundAmount(params.AmountCNY),
		Date:      date,
	}, nil
}

// roundAmount matches the NUMERIC(12,2) column so derived keys stay stable
// across a save and reload.
func roundAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func normalizeDate(d *string) (*string, error) {
	if d == nil || strings.TrimSpace(*d) == "" {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*d)
	if _, err := time.Parse(time.DateOnly, trimmed); err != nil {
		return nil, fmt.Errorf("date %q must be YYYY-MM-DD: %w", trimmed, types.ErrInvalidInput)
	}
	return &trimmed, nil
}
