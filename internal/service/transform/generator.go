package transform

import (
	"context"
	"fmt"
	"log/slog"

	llmanthropic "github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	"braindump/internal/config"
	"braindump/internal/domain/models"
)

// Generator turns raw notes into a structured document.
type Generator interface {
	Generate(ctx context.Context, raw string) (*models.ProcessedDocument, error)
	Model() string
}

// NewGenerator builds the generator selected by cfg.AIModel.
//
// Returns (nil, nil) when the provider needs an API key that is not set;
// the service then runs in degraded mode. Unknown providers are an error.
func NewGenerator(cfg *config.Config, prompts *Prompts, logger *slog.Logger) (Generator, error) {
	info, err := ParseModel(cfg.AIModel)
	if err != nil {
		return nil, fmt.Errorf("parse AI_MODEL: %w", err)
	}

	switch info.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			logger.Warn("ANTHROPIC_API_KEY not set, transforms return notes unchanged", "model", info.Model)
			return nil, nil
		}
		if cfg.AIStructuredOutput {
			return NewAnthropicGenerator(cfg.AnthropicAPIKey, info.Model, cfg.AIMaxOutputTokens, prompts)
		}
		provider, err := llmanthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return NewProviderGenerator(provider, info.Model, prompts)

	case "lorem":
		return NewProviderGenerator(lorem.NewProvider(), info.Model, prompts)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", info.Provider)
	}
}
