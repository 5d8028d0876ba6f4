package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"minutes/internal/services"
	"minutes/internal/task"
)

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestInitialPromptMatchesHints(t *testing.T) {
	if got := InitialPrompt(task.Hints{}, "ja"); got != "これは会議の録音です。" {
		t.Fatalf("unexpected bare prompt %q", got)
	}
	got := InitialPrompt(task.Hints{Summary: "予算会議", Terms: "田中, OKR"}, "ja")
	want := "これは会議の録音です。 予算会議 この会議では以下の用語や人物が登場する可能性があります: 田中, OKR"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	got = InitialPrompt(task.Hints{Terms: "Kubernetes"}, "en")
	if got != "This is a meeting recording. The following terms or people may appear in this meeting: Kubernetes" {
		t.Fatalf("unexpected english prompt %q", got)
	}
}

func TestOpenAITranscriberPostsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "ja" {
			t.Errorf("unexpected form values %v", r.MultipartForm.Value)
		}
		if !strings.Contains(r.FormValue("prompt"), "田中") {
			t.Errorf("expected hint terms in prompt, got %q", r.FormValue("prompt"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "meeting.wav" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if len(data) == 0 {
			t.Error("expected audio bytes")
		}
		_, _ = w.Write([]byte(`{"text":"  本日はよろしくお願いします。 "}`))
	}))
	defer server.Close()

	tr := NewOpenAITranscriber(OpenAIConfig{APIKey: "key", BaseURL: server.URL, Language: "ja"})
	text, err := tr.Transcribe(context.Background(),
		Audio{Path: writeAudio(t, "staged-123.wav"), Name: "meeting.wav"},
		task.Hints{Terms: "田中"})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "本日はよろしくお願いします。" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestOpenAITranscriberSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid file format."}}`))
	}))
	defer server.Close()

	tr := NewOpenAITranscriber(OpenAIConfig{APIKey: "key", BaseURL: server.URL})
	_, err := tr.Transcribe(context.Background(), Audio{Path: writeAudio(t, "a.wav")}, task.Hints{})
	if err == nil || !strings.Contains(err.Error(), "Invalid file format.") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestWhisperXTranscriberReadsOutputAndReportsProgress(t *testing.T) {
	source := writeAudio(t, "meeting.wav")
	tr := NewWhisperXTranscriber(WhisperXConfig{Language: "en", WorkDir: t.TempDir()}, nil)

	var gotArgs []string
	tr.run = func(_ context.Context, name string, args []string, onLine func(string)) error {
		if name != "whisperx" {
			t.Errorf("unexpected binary %q", name)
		}
		gotArgs = args
		onLine("Progress: 50.00%...")
		onLine("unrelated output")
		outputDir := args[indexOf(args, "--output_dir")+1]
		return os.WriteFile(filepath.Join(outputDir, "meeting.txt"), []byte("hello team\n\nlet's begin\n"), 0o644)
	}

	var reports []float64
	ctx := services.WithProgress(context.Background(), func(f float64) { reports = append(reports, f) })
	text, err := tr.Transcribe(ctx, Audio{Path: source}, task.Hints{Summary: "standup"})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "hello team let's begin" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(reports) != 1 || reports[0] != 0.5 {
		t.Fatalf("unexpected progress reports %v", reports)
	}
	if idx := indexOf(gotArgs, "--initial_prompt"); idx < 0 || !strings.Contains(gotArgs[idx+1], "standup") {
		t.Fatalf("expected initial prompt with summary, got %v", gotArgs)
	}
	if idx := indexOf(gotArgs, "--language"); idx < 0 || gotArgs[idx+1] != "en" {
		t.Fatalf("expected language arg, got %v", gotArgs)
	}
}

func TestWhisperXTranscriberFailsOnMissingOutput(t *testing.T) {
	tr := NewWhisperXTranscriber(WhisperXConfig{WorkDir: t.TempDir()}, nil)
	tr.run = func(context.Context, string, []string, func(string)) error { return nil }
	if _, err := tr.Transcribe(context.Background(), Audio{Path: writeAudio(t, "x.wav")}, task.Hints{}); err == nil {
		t.Fatal("expected error when whisperx produced no output")
	}
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
