package generate

import (
	"context"
	"fmt"
	"log/slog"

	"minutes/internal/config"
	"minutes/internal/services"
)

// Prompt is a single text-generation request.
type Prompt struct {
	System string
	User   string
}

// Generator produces text from a prompt. Implementations return the model
// output verbatim apart from surrounding whitespace.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// New builds the generator selected by cfg.Generation.Provider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Generator, error) {
	switch cfg.Generation.Provider {
	case "gemini":
		return NewGeminiGenerator(ctx, GeminiConfig{
			APIKeys: cfg.GenerationKeys(),
			Model:   cfg.Generation.Model,
		}, logger)
	case "openai", "":
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:         cfg.Generation.APIKey,
			BaseURL:        cfg.Generation.BaseURL,
			Model:          cfg.Generation.Model,
			TimeoutSeconds: cfg.Generation.TimeoutSeconds,
		}, WithRetryMaxAttempts(cfg.Generation.RetryAttempts)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "generation", "select provider",
			fmt.Sprintf("unknown generation provider %q", cfg.Generation.Provider), nil)
	}
}
