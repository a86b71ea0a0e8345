package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

// ErrGenerationFailed hides provider-specific failures from callers.
var ErrGenerationFailed = errors.New("failed_to_generate_plan")

const emptyDocument = "{}"

// Completer sends one system + user exchange and returns the raw reply,
// expecting the provider to be in JSON output mode.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

var _ GenerationService = (*GenerationServiceImpl)(nil)

type GenerationService interface {
	// Generate returns the provider's raw JSON document, unparsed.
	Generate(ctx context.Context, req types.TripRequest) (string, error)
}

type GenerationServiceImpl struct {
	completer Completer
	logger    *slog.Logger
}

func NewGenerationService(completer Completer, logger *slog.Logger) *GenerationServiceImpl {
	return &GenerationServiceImpl{
		completer: completer,
		logger:    logger,
	}
}

func (s *GenerationServiceImpl) Generate(ctx context.Context, req types.TripRequest) (string, error) {
	ctx, span := otel.Tracer("GenerationService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("llm.provider", s.completer.Name()),
		attribute.String("trip.destination", req.Destination),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Generate"), slog.String("provider", s.completer.Name()))
	l.DebugContext(ctx, "Requesting itinerary", slog.String("destination", req.Destination))

	system, user := BuildMessages(req)
	start := time.Now()
	content, err := s.completer.Complete(ctx, system, user)
	m := metrics.Get()
	m.PlanGenerationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("provider", s.completer.Name())))
	if err != nil {
		l.ErrorContext(ctx, "Completion request failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		m.PlanGenerationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(content) == "" {
		l.WarnContext(ctx, "Provider returned empty content")
		content = emptyDocument
	}

	m.PlanGenerationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	l.InfoContext(ctx, "Itinerary generated", slog.Int("bytes", len(content)))
	span.SetStatus(codes.Ok, "itinerary generated")
	return content, nil
}

// NewCompleter builds the provider selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case ProviderGemini:
		return NewGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
