package plans

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
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

var _ PlansRepository = (*PostgresPlansRepo)(nil)

// PlansRepository persists travel plans. Every statement is scoped to userID,
// both in its WHERE clause and through the row security setting.
type PlansRepository interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]types.TravelPlan, error)
	// Get returns types.ErrNotFound for plans that are missing, inactive or
	// owned by someone else.
	Get(ctx context.Context, userID, planID uuid.UUID) (*types.TravelPlan, error)
	Create(ctx context.Context, userID uuid.UUID, params types.CreatePlanRequest) (*types.TravelPlan, error)
	SoftDelete(ctx context.Context, userID, planID uuid.UUID) error
}

type PostgresPlansRepo struct {
	logger *slog.Logger
	pgpool database.Querier
}

func NewPostgresPlansRepo(pgpool database.Querier, logger *slog.Logger) *PostgresPlansRepo {
	return &PostgresPlansRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const planColumns = `id, user_id, title, origin, destination, to_char(start_date, 'YYYY-MM-DD'),
        days, budget::float8, travelers, preferences, with_children, language, plan_data,
        is_active, created_at, updated_at`

func scanPlan(row pgx.Row) (*types.TravelPlan, error) {
	var p types.TravelPlan
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Origin, &p.Destination, &p.StartDate,
		&p.Days, &p.Budget, &p.Travelers, &p.Preferences, &p.WithChildren, &p.Language, &p.PlanData,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Preferences == nil {
		p.Preferences = []string{}
	}
	return &p, nil
}

func (r *PostgresPlansRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]types.TravelPlan, error) {
	ctx, span := otel.Tracer("PlansRepo").Start(ctx, "ListActive", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "travel_plans"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListActive"), slog.String("userID", userID.String()))

	query := `
        SELECT ` + planColumns + `
        FROM travel_plans
        WHERE user_id = $1 AND is_active = TRUE
        ORDER BY updated_at DESC`

	start := time.Now()
	plans := []types.TravelPlan{}
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) error {
		rows, err := q.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPlan(rows)
			if err != nil {
				return fmt.Errorf("scanning plan: %w", err)
			}
			plans = append(plans, *p)
		}
		return rows.Err()
	})
	database.ObserveQuery(ctx, "travel_plans", "select", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query travel plans", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching plans: %w", err)
	}

	l.DebugContext(ctx, "Fetched active plans", slog.Int("count", len(plans)))
	span.SetStatus(codes.Ok, "Plans fetched")
	return plans, nil
}

func (r *PostgresPlansRepo) Get(ctx context.Context, userID, planID uuid.UUID) (*types.TravelPlan, error) {
	ctx, span := otel.Tracer("PlansRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "travel_plans"),
		attribute.String("plan.id", planID.String()),
	))
	defer span.End()

	query := `
        SELECT ` + planColumns + `
        FROM travel_plans
        WHERE id = $1 AND user_id = $2 AND is_active = TRUE`

	start := time.Now()
	var p *types.TravelPlan
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) (err error) {
		p, err = scanPlan(q.QueryRow(ctx, query, planID, userID))
		return err
	})
	database.ObserveQuery(ctx, "travel_plans", "select", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "plan not found")
			return nil, fmt.Errorf("plan %s: %w", planID, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to fetch travel plan", slog.String("planID", planID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching plan: %w", err)
	}

	span.SetStatus(codes.Ok, "Plan fetched")
	return p, nil
}

// Create expects params with defaults already applied.
func (r *PostgresPlansRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreatePlanRequest) (*types.TravelPlan, error) {
	ctx, span := otel.Tracer("PlansRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "travel_plans"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", userID.String()))

	query := `
        INSERT INTO travel_plans (
            user_id, title, origin, destination, start_date, days, budget, travelers,
            preferences, with_children, language, plan_data
        ) VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12)
        RETURNING ` + planColumns

	start := time.Now()
	var p *types.TravelPlan
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) (err error) {
		p, err = scanPlan(q.QueryRow(ctx, query,
			userID,
			params.Title,
			nullIfEmpty(params.Origin),
			params.Destination,
			nullIfEmpty(params.StartDate),
			params.Days,
			params.Budget,
			params.Travelers,
			[]string(params.Preferences),
			params.WithChildren,
			params.Language,
			params.PlanData,
		))
		return err
	})
	database.ObserveQuery(ctx, "travel_plans", "insert", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert travel plan", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error creating plan: %w", err)
	}

	l.InfoContext(ctx, "Travel plan created", slog.String("planID", p.ID.String()))
	span.SetStatus(codes.Ok, "Plan created")
	return p, nil
}

func (r *PostgresPlansRepo) SoftDelete(ctx context.Context, userID, planID uuid.UUID) error {
	ctx, span := otel.Tracer("PlansRepo").Start(ctx, "SoftDelete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "travel_plans"),
		attribute.String("plan.id", planID.String()),
	))
	defer span.End()

	query := `
        UPDATE travel_plans
        SET is_active = FALSE, updated_at = NOW()
        WHERE id = $1 AND user_id = $2 AND is_active = TRUE`

	start := time.Now()
	var tag pgconn.CommandTag
	err := database.WithUserScope(ctx, r.pgpool, userID, func(q database.Querier) (err error) {
		tag, err = q.Exec(ctx, query, planID, userID)
		return err
	})
	database.ObserveQuery(ctx, "travel_plans", "update", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to deactivate travel plan", slog.String("planID", planID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("database error deleting plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "plan not found")
		return fmt.Errorf("plan %s: %w", planID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Plan deactivated")
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
