package editor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"minutes/internal/generate"
	"minutes/internal/logging"
	"minutes/internal/services"
)

// Applier rewrites a document according to a free-text instruction using the
// text generator.
type Applier struct {
	generator generate.Generator
	language  string
	logger    *slog.Logger
}

// NewApplier constructs an applier. language selects the edit prompt.
func NewApplier(generator generate.Generator, language string, logger *slog.Logger) *Applier {
	return &Applier{
		generator: generator,
		language:  language,
		logger:    logging.NewComponentLogger(logger, "editor"),
	}
}

// ApplyInstruction sends (current, instruction) to the generator and returns
// its output verbatim. Failures are tagged services.ErrGeneration.
func (a *Applier) ApplyInstruction(ctx context.Context, instruction, current string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", services.Wrap(services.ErrValidation, "edit", "validate instruction", "instruction is empty", nil)
	}
	if strings.TrimSpace(current) == "" {
		return "", services.Wrap(services.ErrValidation, "edit", "validate document", "document is empty", nil)
	}
	if a.generator == nil {
		return "", services.Wrap(services.ErrConfiguration, "edit", "generate", "text generator not configured", nil)
	}
	started := time.Now()
	updated, err := a.generator.Generate(ctx, generate.EditPrompt(current, instruction, a.language))
	if err != nil {
		a.logger.Warn("edit instruction failed",
			logging.String(logging.FieldEventType, "edit_failed"),
			logging.String(logging.FieldErrorHint, "retry the instruction or rephrase it"),
			logging.Error(err),
		)
		return "", services.Wrap(services.ErrGeneration, "edit", "generate", "apply edit instruction", err)
	}
	if strings.TrimSpace(updated) == "" {
		return "", services.Wrap(services.ErrGeneration, "edit", "generate", "generator returned an empty document", nil)
	}
	a.logger.Info("edit instruction applied",
		logging.String(logging.FieldEventType, "edit_applied"),
		logging.Int("document_chars", len([]rune(updated))),
		logging.Duration("elapsed", time.Since(started)),
	)
	return updated, nil
}
