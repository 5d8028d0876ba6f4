package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"minutes/internal/config"
	"minutes/internal/services"
	"minutes/internal/task"
)

// Audio points at a staged recording on local disk.
type Audio struct {
	Path string
	Name string
	Size int64
}

// Transcriber converts audio to raw text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, hints task.Hints) (string, error)
}

// InitialPrompt builds the vocabulary hint passed to the speech model. The
// model uses it as preceding context, which helps with names and jargon.
func InitialPrompt(hints task.Hints, language string) string {
	summary := strings.TrimSpace(hints.Summary)
	terms := strings.TrimSpace(hints.Terms)
	if strings.HasPrefix(strings.ToLower(language), "ja") {
		prompt := "これは会議の録音です。"
		if summary != "" {
			prompt += " " + summary
		}
		if terms != "" {
			prompt += " この会議では以下の用語や人物が登場する可能性があります: " + terms
		}
		return prompt
	}
	prompt := "This is a meeting recording."
	if summary != "" {
		prompt += " " + summary
	}
	if terms != "" {
		prompt += " The following terms or people may appear in this meeting: " + terms
	}
	return prompt
}

// New builds the transcriber selected by cfg.Transcription.Provider.
func New(cfg *config.Config, logger *slog.Logger) (Transcriber, error) {
	t := cfg.Transcription
	switch t.Provider {
	case "whisperx":
		return NewWhisperXTranscriber(WhisperXConfig{
			Binary:   t.WhisperXBinary,
			Model:    t.WhisperXModel,
			Language: t.Language,
			WorkDir:  cfg.Paths.StagingDir,
		}, logger), nil
	case "openai", "":
		return NewOpenAITranscriber(OpenAIConfig{
			APIKey:         t.APIKey,
			BaseURL:        t.BaseURL,
			Model:          t.Model,
			Language:       t.Language,
			TimeoutSeconds: t.TimeoutSeconds,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "select provider",
			fmt.Sprintf("unknown transcription provider %q", t.Provider), nil)
	}
}
