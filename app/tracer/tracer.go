package tracer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider bundles the installed providers so they can be flushed on shutdown.
type Provider struct {
	tp       *trace.TracerProvider
	mp       *metric.MeterProvider
	registry *promclient.Registry
}

// InitTracingAndMetrics installs the global tracer and meter providers. Metrics
// are exported through a dedicated Prometheus registry served by Handler.
func InitTracingAndMetrics(serviceName string) (*Provider, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tp := trace.NewTracerProvider(trace.WithResource(res))
	otel.SetTracerProvider(tp)

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	return &Provider{tp: tp, mp: mp, registry: registry}, nil
}

// Handler serves the Prometheus scrape endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}
