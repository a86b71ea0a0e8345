package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-travel-planner/app/db"
	"github.com/FACorreiaa/go-travel-planner/internal/api/reconcile"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

var (
	_ ExpensesRepository      = (*PostgresExpensesRepo)(nil)
	_ reconcile.ExpenseStore = (*PostgresExpensesRepo)(nil)
)

// ExpensesRepository persists expenses. The title of an expense is stored in
// the notes column.
type ExpensesRepository interface {
	ListByPlan(ctx context.Context, userID, planID uuid.UUID) ([]types.Expense, error)
	// Create returns types.ErrNotFound when planID is not an active plan of userID.
	Create(ctx context.Context, userID, planID uuid.UUID, e types.Expense) (*types.Expense, error)
	Update(ctx context.Context, userID, expenseID uuid.UUID, e types.Expense) (*types.Expense, error)
	Delete(ctx context.Context, userID, expenseID uuid.UUID) error
}

type PostgresExpensesRepo struct {
	logger *slog.Logger
	pgpool database.Querier
}

func NewPostgresExpensesRepo(pgpool database.Querier, logger *slog.Logger) *PostgresExpensesRepo {
	return &PostgresExpensesRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const expenseColumns = `id::text, plan_id::text, category, notes, amount_cny::float8,
        to_char(expense_date, 'YYYY-MM-DD'), created_at`

func scanExpense(row pgx.Row) (*types.Expense, error) {
	var (
		e        types.Expense
		category string
	)
	if err := row.Scan(&e.ID, &e.PlanID, &category, &e.Title, &e.AmountCNY, &e.Date, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Category = types.ExpenseCategory(category)
	return &e, nil
}

func (r *PostgresExpensesRepo) ListByPlan(ctx context.Context, userID, planID uuid.UUID) ([]types.Expense, error) {
	ctx, span := otel.Tracer("ExpensesRepo").Start(ctx, "ListByPlan", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "expenses"),
		attribute.String("plan.id", planID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListByPlan"), slog.String("planID", planID.String()))

	query := `
        SELECT ` + expenseColumns + `
        FROM expenses
        WHERE user_id = $1 AND plan_id = $2
        ORDER BY expense_date ASC NULLS LAST, created_at ASC`

	start := time.Now()
	expenses := []types.Expense{}
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) error {
		rows, err := q.Query(ctx, query, userID, planID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return fmt.Errorf("scanning expense: %w", err)
			}
			expenses = append(expenses, *e)
		}
		return rows.Err()
	})
	database.ObserveQuery(ctx, "expenses", "select", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query expenses", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching expenses: %w", err)
	}

	span.SetStatus(codes.Ok, "Expenses fetched")
	return expenses, nil
}

func (r *PostgresExpensesRepo) Create(ctx context.Context, userID, planID uuid.UUID, e types.Expense) (*types.Expense, error) {
	ctx, span := otel.Tracer("ExpensesRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "expenses"),
		attribute.String("plan.id", planID.String()),
	))
	defer span.End()

	// The insert only happens when the plan belongs to the caller.
	query := `
        INSERT INTO expenses (user_id, plan_id, category, notes, amount_cny, expense_date)
        SELECT $1, p.id, $3, $4, $5, $6::date
        FROM travel_plans p
        WHERE p.id = $2 AND p.user_id = $1 AND p.is_active = TRUE
        RETURNING ` + expenseColumns

	start := time.Now()
	var created *types.Expense
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) (err error) {
		created, err = scanExpense(q.QueryRow(ctx, query,
			userID, planID, string(e.Category), e.Title, e.AmountCNY, e.Date,
		))
		return err
	})
	database.ObserveQuery(ctx, "expenses", "insert", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "plan not found")
			return nil, fmt.Errorf("plan %s: %w", planID, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to insert expense", slog.String("planID", planID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error creating expense: %w", err)
	}

	span.SetStatus(codes.Ok, "Expense created")
	return created, nil
}

func (r *PostgresExpensesRepo) Update(ctx context.Context, userID, expenseID uuid.UUID, e types.Expense) (*types.Expense, error) {
	ctx, span := otel.Tracer("ExpensesRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "expenses"),
		attribute.String("expense.id", expenseID.String()),
	))
	defer span.End()

	query := `
        UPDATE expenses
        SET category = $3, notes = $4, amount_cny = $5, expense_date = $6::date, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING ` + expenseColumns

	start := time.Now()
	var updated *types.Expense
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) (err error) {
		updated, err = scanExpense(q.QueryRow(ctx, query,
			expenseID, userID, string(e.Category), e.Title, e.AmountCNY, e.Date,
		))
		return err
	})
	database.ObserveQuery(ctx, "expenses", "update", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "expense not found")
			return nil, fmt.Errorf("expense %s: %w", expenseID, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to update expense", slog.String("expenseID", expenseID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("database error updating expense: %w", err)
	}

	span.SetStatus(codes.Ok, "Expense updated")
	return updated, nil
}

func (r *PostgresExpensesRepo) Delete(ctx context.Context, userID, expenseID uuid.UUID) error {
	ctx, span := otel.Tracer("ExpensesRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "expenses"),
		attribute.String("expense.id", expenseID.String()),
	))
	defer span.End()

	start := time.Now()
	var tag pgconn.CommandTag
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) (err error) {
		tag, err = q.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, expenseID, userID)
		return err
	})
	database.ObserveQuery(ctx, "expenses", "delete", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete expense", slog.String("expenseID", expenseID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("database error deleting expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "expense not found")
		return fmt.Errorf("expense %s: %w", expenseID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Expense deleted")
	return nil
}
