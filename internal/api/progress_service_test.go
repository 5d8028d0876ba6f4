package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"minutes/internal/services"
	"minutes/internal/task"
)

func TestProgressServiceStatusRunning(t *testing.T) {
	store := task.NewMemoryStore()
	rec, err := store.Create(context.Background(), task.Submission{SourceName: "a.wav"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Update(context.Background(), rec.ID, task.ProgressPatch(task.StageTranscribing, 35, "Transcribing audio")); err != nil {
		t.Fatalf("Update: %v", err)
	}

	svc := NewProgressService(store)
	got, err := svc.Status(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := TaskStatus{
		TaskID:     rec.ID,
		Progress:   35,
		Stage:      2,
		StageLabel: "Transcribing",
		Message:    "Transcribing audio",
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if got.Terminal() {
		t.Fatal("running task should not be terminal")
	}
}

func TestProgressServiceStatusIsIdempotent(t *testing.T) {
	store := task.NewMemoryStore()
	rec, _ := store.Create(context.Background(), task.Submission{SourceName: "a.wav"})
	_, _ = store.Update(context.Background(), rec.ID, task.CompletePatch(task.Result{RawText: "raw", Document: "doc"}))

	svc := NewProgressService(store)
	first, err := svc.Status(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	second, _ := svc.Status(context.Background(), rec.ID)
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("payload changed between polls:\n%s\n%s", a, b)
	}
	if !first.Completed || first.Result == nil || first.Result.Document != "doc" || first.Progress != 100 || first.Stage != 4 {
		t.Fatalf("unexpected completed payload %+v", first)
	}
}

func TestProgressServiceStatusFailed(t *testing.T) {
	store := task.NewMemoryStore()
	rec, _ := store.Create(context.Background(), task.Submission{SourceName: "a.wav"})
	_, _ = store.Update(context.Background(), rec.ID, task.ProgressPatch(task.StageTranscribing, 10, "Transcribing audio"))
	_, _ = store.Update(context.Background(), rec.ID, task.FailPatch("Transcription failed: quota"))

	got, err := NewProgressService(store).Status(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !got.Error || got.Completed || got.Stage != 2 || got.ErrorMessage != "Transcription failed: quota" || got.Result != nil {
		t.Fatalf("unexpected failed payload %+v", got)
	}

	raw, _ := json.Marshal(got)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	if _, ok := decoded["result"]; ok {
		t.Fatal("failed payload must not carry a result")
	}
}

func TestProgressServiceStatusNotFound(t *testing.T) {
	_, err := NewProgressService(task.NewMemoryStore()).Status(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if services.HTTPStatus(err) != 404 {
		t.Fatalf("expected 404 mapping, got %d", services.HTTPStatus(err))
	}
}
