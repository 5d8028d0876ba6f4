package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"minutes/internal/logging"
)

// GeminiConfig configures the Gemini generator. Keys are tried in order and
// the generator moves to the next one when a key runs out of quota.
type GeminiConfig struct {
	APIKeys []string
	Model   string
}

type geminiCall func(ctx context.Context, apiKey, model string, prompt Prompt) (string, error)

// GeminiGenerator calls the Gemini API through google.golang.org/genai.
type GeminiGenerator struct {
	model  string
	keys   []string
	logger *slog.Logger
	call   geminiCall

	mu      sync.Mutex
	current int
	clients map[string]*genai.Client
}

// NewGeminiGenerator constructs a generator with at least one API key.
func NewGeminiGenerator(_ context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiGenerator, error) {
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("gemini: at least one api key required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	g := &GeminiGenerator{
		model:   model,
		keys:    keys,
		logger:  logging.NewComponentLogger(logger, "gemini"),
		clients: make(map[string]*genai.Client),
	}
	g.call = g.generateContent
	return g, nil
}

// Generate sends the prompt, rotating keys on quota exhaustion. Each key is
// tried at most once per call.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if strings.TrimSpace(prompt.User) == "" {
		return "", errors.New("generate: user prompt required")
	}
	g.mu.Lock()
	start := g.current
	g.mu.Unlock()

	var lastErr error
	for offset := range len(g.keys) {
		index := (start + offset) % len(g.keys)
		text, err := g.call(ctx, g.keys[index], g.model, prompt)
		if err == nil {
			g.mu.Lock()
			g.current = index
			g.mu.Unlock()
			return text, nil
		}
		lastErr = err
		if !isQuotaError(err) || ctx.Err() != nil {
			return "", err
		}
		logging.WarnWithContext(g.logger, "gemini key exhausted; rotating", "gemini_key_rotated",
			logging.Int("key_index", index),
			logging.Int("key_count", len(g.keys)),
			logging.String(logging.FieldErrorHint, "add more keys to generation.api_keys or wait for quota reset"),
		)
	}
	return "", fmt.Errorf("all %d gemini keys exhausted: %w", len(g.keys), lastErr)
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func (g *GeminiGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.clients[apiKey]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	g.clients[apiKey] = client
	return client, nil
}

func (g *GeminiGenerator) generateContent(ctx context.Context, apiKey, model string, prompt Prompt) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}
	var genCfg *genai.GenerateContentConfig
	if system := strings.TrimSpace(prompt.System); system != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt.User), genCfg)
	if err != nil {
		return "", err
	}
	return candidateText(result)
}

// candidateText joins the text parts of the first candidate exactly as the
// model produced them. Whitespace-only output counts as empty.
func candidateText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var out strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			out.WriteString(part.Text)
		}
	}
	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
