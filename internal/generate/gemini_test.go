package generate

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestGeminiGeneratorRotatesOnQuota(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKeys: []string{"k1", " ", "k2"}}, nil)
	if err != nil {
		t.Fatalf("NewGeminiGenerator returned error: %v", err)
	}
	var used []string
	gen.call = func(_ context.Context, key, model string, prompt Prompt) (string, error) {
		used = append(used, key)
		if model != "gemini-2.5-flash" {
			t.Errorf("unexpected default model %q", model)
		}
		if key == "k1" {
			return "", errors.New("Error 429, RESOURCE_EXHAUSTED")
		}
		return "minutes for " + prompt.User, nil
	}

	out, err := gen.Generate(context.Background(), Prompt{User: "transcript"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "minutes for transcript" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(used) != 2 || used[0] != "k1" || used[1] != "k2" {
		t.Fatalf("unexpected key order %v", used)
	}

	used = nil
	if _, err := gen.Generate(context.Background(), Prompt{User: "again"}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(used) != 1 || used[0] != "k2" {
		t.Fatalf("expected working key to be reused first, got %v", used)
	}
}

func TestGeminiGeneratorStopsOnNonQuotaError(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKeys: []string{"k1", "k2"}, Model: "m"}, nil)
	if err != nil {
		t.Fatalf("NewGeminiGenerator returned error: %v", err)
	}
	calls := 0
	gen.call = func(context.Context, string, string, Prompt) (string, error) {
		calls++
		return "", errors.New("invalid argument")
	}
	if _, err := gen.Generate(context.Background(), Prompt{User: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestGeminiGeneratorAllKeysExhausted(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKeys: []string{"k1", "k2"}}, nil)
	if err != nil {
		t.Fatalf("NewGeminiGenerator returned error: %v", err)
	}
	gen.call = func(context.Context, string, string, Prompt) (string, error) {
		return "", errors.New("quota exceeded")
	}
	if _, err := gen.Generate(context.Background(), Prompt{User: "x"}); err == nil {
		t.Fatal("expected exhaustion error")
	}
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGeminiGenerator(context.Background(), GeminiConfig{}, nil); err == nil {
		t.Fatal("expected error without keys")
	}
}

func TestCandidateTextKeepsOutputVerbatim(t *testing.T) {
	result := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "# Minutes\n"},
			{Text: "- budget agreed\n\n"},
		}},
	}}}
	got, err := candidateText(result)
	if err != nil {
		t.Fatalf("candidateText returned error: %v", err)
	}
	if got != "# Minutes\n- budget agreed\n\n" {
		t.Fatalf("output was altered: %q", got)
	}
}

func TestCandidateTextRejectsBlankOutput(t *testing.T) {
	blank := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: " \n\t"}}},
	}}}
	for name, result := range map[string]*genai.GenerateContentResponse{
		"nil":        nil,
		"no content": {Candidates: []*genai.Candidate{{}}},
		"whitespace": blank,
	} {
		if _, err := candidateText(result); err == nil {
			t.Errorf("%s: expected empty response error", name)
		}
	}
}
