package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/FACorreiaa/go-travel-planner/config"
)

const (
	ProviderGemini     = "gemini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiCompleter(ctx context.Context, cfg config.LLMConfig) (*GeminiCompleter, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GOOGLE_GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" || model == DefaultOpenAIModel {
		model = DefaultGeminiModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	return &GeminiCompleter{client: client, model: model, temperature: float32(temperature)}, nil
}

func (c *GeminiCompleter) Name() string { return ProviderGemini }

func (c *GeminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(c.temperature),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return result.Text(), nil
}
