package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-travel-planner/app/observability/metrics"
)

// ObserveQuery records duration and failures for one statement. A missing row
// is not counted as an error.
func ObserveQuery(ctx context.Context, table, operation string, start time.Time, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(
		attribute.String("db.sql.table", table),
		attribute.String("db.operation", operation),
	)
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}
