package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/FACorreiaa/go-travel-planner/config"
)

const (
	ProviderOpenAI     = "openai"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTemperature = 0.4
)

// OpenAICompleter talks to any OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewOpenAICompleter(cfg config.LLMConfig) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

func (c *OpenAICompleter) Name() string { return ProviderOpenAI }

func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
