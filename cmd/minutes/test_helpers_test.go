package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"minutes/internal/api"
	"minutes/internal/editor"
	"minutes/internal/generate"
	"minutes/internal/pipeline"
	"minutes/internal/server"
	"minutes/internal/task"
	"minutes/internal/testsupport"
)

type cliTestEnv struct {
	store       *task.MemoryStore
	transcriber *testsupport.StubTranscriber
	generator   *testsupport.StubGenerator
	exporter    *testsupport.StubExporter
	runner      *pipeline.Runner
	http        *httptest.Server
	configPath  string
	baseDir     string
}

// setupCLITestEnv serves the real HTTP API over a runner with stubbed
// collaborators. The generator numbers its replies so edits are
// distinguishable.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	var replies atomic.Int64
	env := &cliTestEnv{
		store:       task.NewMemoryStore(),
		transcriber: &testsupport.StubTranscriber{Text: "we agreed on the budget"},
		generator: &testsupport.StubGenerator{Reply: func(generate.Prompt) (string, error) {
			return fmt.Sprintf("# Minutes v%d\n- budget agreed\n", replies.Add(1)), nil
		}},
		exporter:   &testsupport.StubExporter{URL: "file:///tmp/minutes.docx"},
		configPath: filepath.Join(base, "missing.toml"),
		baseDir:    base,
	}
	env.runner = pipeline.NewRunner(pipeline.SettingsFrom(cfg), env.store, env.transcriber, env.generator, nil)
	t.Cleanup(env.runner.Shutdown)

	srv := server.New("127.0.0.1:0", server.Deps{
		Launcher: env.runner,
		Progress: api.NewProgressService(env.store),
		Applier:  editor.NewApplier(env.generator, "en", nil),
		Exporter: env.exporter,
		Health: func(context.Context) api.HealthResponse {
			return api.HealthResponse{Status: "ok", Transcription: "openai", Generation: "openai", Export: "docx", Store: "memory"}
		},
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, nil)
	env.http = httptest.NewServer(srv.Handler())
	t.Cleanup(env.http.Close)
	return env
}

func (e *cliTestEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, stdin, append([]string{"--server", e.http.URL, "--config", e.configPath}, args...))
}

func (e *cliTestEnv) audio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "standup.wav")
	testsupport.WriteAudio(t, path, 2048)
	return path
}

func runCLI(t *testing.T, stdin string, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
