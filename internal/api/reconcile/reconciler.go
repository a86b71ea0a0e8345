package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

// ExpenseStore is the user-scoped persistence the reconciler drives.
type ExpenseStore interface {
	ListByPlan(ctx context.Context, userID, planID uuid.UUID) ([]types.Expense, error)
	Create(ctx context.Context, userID, planID uuid.UUID, e types.Expense) (*types.Expense, error)
	Update(ctx context.Context, userID, expenseID uuid.UUID, e types.Expense) (*types.Expense, error)
	Delete(ctx context.Context, userID, expenseID uuid.UUID) error
}

// Result is the outcome of one reconciliation. Expenses is the local list with
// ids rewritten to the stored ones; items that failed keep their local id.
type Result struct {
	Expenses []types.Expense
	Deleted  int
	Updated  int
	Inserted int
	Failed   int
}

type Reconciler struct {
	store  ExpenseStore
	logger *slog.Logger
}

func NewReconciler(store ExpenseStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
	}
}

// Key derives the natural key used to match a local expense to a stored one.
// Two expenses with the same title, amount and category collide.
func Key(e types.Expense) string {
	amount := decimal.NewFromFloat(e.AmountCNY).Round(2).String()
	return strings.TrimSpace(e.Title) + "|" + amount + "|" + string(types.ParseExpenseCategory(string(e.Category)))
}

// Reconcile makes the stored expenses of planID match local. Stored rows whose
// key is missing locally are deleted first; then each local item in order
// either updates the stored row with the same key or is inserted. Work is
// sequential and not transactional: failing items are logged and skipped and
// the joined error is returned together with the partial result.
func (r *Reconciler) Reconcile(ctx context.Context, userID, planID uuid.UUID, local []types.Expense) (Result, error) {
	ctx, span := otel.Tracer("ExpenseReconciler").Start(ctx, "Reconcile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("plan.id", planID.String()),
		attribute.Int("expenses.local", len(local)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Reconcile"), slog.String("planID", planID.String()))

	remote, err := r.store.ListByPlan(ctx, userID, planID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list remote failed")
		return Result{}, fmt.Errorf("listing stored expenses: %w", err)
	}

	remoteByKey := make(map[string]string, len(remote))
	for _, e := range remote {
		remoteByKey[Key(e)] = e.ID
	}
	localKeys := lo.SliceToMap(local, func(e types.Expense) (string, struct{}) {
		return Key(e), struct{}{}
	})

	var (
		res  = Result{Expenses: make([]types.Expense, 0, len(local))}
		errs []error
	)

	for _, e := range remote {
		if _, keep := localKeys[Key(e)]; keep {
			continue
		}
		id, err := uuid.Parse(e.ID)
		if err == nil {
			err = r.store.Delete(ctx, userID, id)
		}
		r.record(ctx, "delete", err)
		if err != nil {
			l.WarnContext(ctx, "Failed to delete stored expense", slog.String("expenseID", e.ID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("delete %s: %w", e.ID, err))
			res.Failed++
			continue
		}
		res.Deleted++
	}

	for _, e := range local {
		e.PlanID = planID.String()
		e.Category = types.ParseExpenseCategory(string(e.Category))

		if remoteID, ok := remoteByKey[Key(e)]; ok {
			id, err := uuid.Parse(remoteID)
			if err == nil {
				_, err = r.store.Update(ctx, userID, id, e)
			}
			r.record(ctx, "update", err)
			if err != nil {
				l.WarnContext(ctx, "Failed to update stored expense", slog.String("expenseID", remoteID), slog.Any("error", err))
				errs = append(errs, fmt.Errorf("update %s: %w", remoteID, err))
				res.Failed++
			} else {
				e.ID = remoteID
				res.Updated++
			}
			res.Expenses = append(res.Expenses, e)
			continue
		}

		created, err := r.store.Create(ctx, userID, planID, e)
		r.record(ctx, "insert", err)
		if err != nil {
			l.WarnContext(ctx, "Failed to insert expense", slog.String("title", e.Title), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("insert %q: %w", e.Title, err))
			res.Failed++
		} else {
			e.ID = created.ID
			e.CreatedAt = created.CreatedAt
			res.Inserted++
		}
		res.Expenses = append(res.Expenses, e)
	}

	span.SetAttributes(
		attribute.Int("expenses.deleted", res.Deleted),
		attribute.Int("expenses.updated", res.Updated),
		attribute.Int("expenses.inserted", res.Inserted),
	)
	l.InfoContext(ctx, "Expenses reconciled",
		slog.Int("deleted", res.Deleted),
		slog.Int("updated", res.Updated),
		slog.Int("inserted", res.Inserted),
		slog.Int("failed", res.Failed))

	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetStatus(codes.Error, "partial reconciliation")
		return res, err
	}
	span.SetStatus(codes.Ok, "reconciled")
	return res, nil
}

func (r *Reconciler) record(ctx context.Context, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.Get().ExpenseSyncOpsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}
