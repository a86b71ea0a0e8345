package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	PlanGenerationsTotal   metric.Int64Counter
	PlanGenerationSeconds  metric.Float64Histogram
	GeoLookupsTotal        metric.Int64Counter
	ExpenseSyncOpsTotal    metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global MeterProvider.
// Safe to call more than once; only the first call has an effect.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TravelPlanner")
		var err error
		m := &AppMetrics{}

		m.PlanGenerationsTotal, err = meter.Int64Counter(
			"plan_generations_total",
			metric.WithDescription("Itinerary generation attempts by outcome"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_generations_total: %v", err)
		}

		m.PlanGenerationSeconds, err = meter.Float64Histogram(
			"plan_generation_duration_seconds",
			metric.WithDescription("Duration of LLM completion calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_generation_duration_seconds: %v", err)
		}

		m.GeoLookupsTotal, err = meter.Int64Counter(
			"geo_lookups_total",
			metric.WithDescription("Place search and routing calls by operation and outcome"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create geo_lookups_total: %v", err)
		}

		m.ExpenseSyncOpsTotal, err = meter.Int64Counter(
			"expense_sync_operations_total",
			metric.WithDescription("Store operations issued by expense reconciliation"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create expense_sync_operations_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, initialising them against the current global
// MeterProvider on first use. Tests get the otel no-op provider.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
