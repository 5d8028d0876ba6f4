package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minutes/internal/task"
)

const defaultTranscriptionEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// OpenAIConfig configures the hosted Whisper transcription API.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

// OpenAITranscriber uploads audio to an OpenAI-compatible transcription endpoint.
type OpenAITranscriber struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAITranscriber constructs a transcriber; zero values fall back to
// whisper-1 on api.openai.com.
func NewOpenAITranscriber(cfg OpenAIConfig) *OpenAITranscriber {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultTranscriptionEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "whisper-1"
	}
	timeout := 10 * time.Minute
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &OpenAITranscriber{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe streams the audio file as multipart form data and returns the text.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio Audio, hints task.Hints) (string, error) {
	if t.cfg.APIKey == "" {
		return "", errors.New("transcribe: api key required")
	}
	file, err := os.Open(audio.Path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	name := audio.Name
	if name == "" {
		name = filepath.Base(audio.Path)
	}

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(form, file, name, t.cfg, InitialPrompt(hints, t.cfg.Language)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, body)
	if err != nil {
		_ = body.Close()
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	var decoded transcriptionResponse
	_ = json.Unmarshal(payload, &decoded)
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(payload))
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, msg)
	}
	text := strings.TrimSpace(decoded.Text)
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

func writeForm(form *multipart.Writer, audio io.Reader, name string, cfg OpenAIConfig, prompt string) error {
	fields := [][2]string{{"model", cfg.Model}, {"response_format", "json"}}
	if cfg.Language != "" {
		fields = append(fields, [2]string{"language", cfg.Language})
	}
	if prompt != "" {
		fields = append(fields, [2]string{"prompt", prompt})
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	return form.Close()
}
