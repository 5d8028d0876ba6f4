package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"minutes/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "MINUTES_API_TOKEN", "AZURE_STORAGE_CONNECTION_STRING"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "minutes", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.APIKey != "test-key" {
		t.Fatalf("expected transcription key from env, got %q", cfg.Transcription.APIKey)
	}
	if cfg.Generation.APIKey != "test-key" {
		t.Fatalf("expected generation key from env, got %q", cfg.Generation.APIKey)
	}
	if cfg.Generation.Model != "gpt-4-turbo-preview" {
		t.Fatalf("unexpected default generation model: %q", cfg.Generation.Model)
	}
	if cfg.Tasks.Store != "memory" {
		t.Fatalf("expected memory task store by default, got %q", cfg.Tasks.Store)
	}
	if cfg.Client.ServerURL != "http://127.0.0.1:7490" {
		t.Fatalf("expected client server url derived from bind, got %q", cfg.Client.ServerURL)
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Retention() != time.Hour {
		t.Fatalf("unexpected retention: %s", cfg.Retention())
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("ValidateCredentials returned error: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "minutes.toml")

	type payload struct {
		Generation struct {
			Provider string   `toml:"provider"`
			APIKeys  []string `toml:"api_keys"`
		} `toml:"generation"`
		Tasks struct {
			Store            string `toml:"store"`
			RetentionMinutes int    `toml:"retention_minutes"`
		} `toml:"tasks"`
		Client struct {
			ServerURL string `toml:"server_url"`
		} `toml:"client"`
	}
	custom := payload{}
	custom.Generation.Provider = "Gemini"
	custom.Generation.APIKeys = []string{"k1", "k2", "k1"}
	custom.Tasks.Store = "sqlite"
	custom.Tasks.RetentionMinutes = 5
	custom.Client.ServerURL = "http://example.com:9000/"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Generation.Provider != "gemini" {
		t.Fatalf("expected provider to be lowercased, got %q", cfg.Generation.Provider)
	}
	if cfg.Generation.Model != "gemini-2.5-flash" {
		t.Fatalf("expected gemini default model, got %q", cfg.Generation.Model)
	}
	keys := cfg.GenerationKeys()
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("unexpected generation keys: %v", keys)
	}
	if cfg.Tasks.Store != "sqlite" {
		t.Fatalf("expected sqlite store, got %q", cfg.Tasks.Store)
	}
	if !filepath.IsAbs(cfg.Tasks.DatabasePath) {
		t.Fatalf("expected absolute database path, got %q", cfg.Tasks.DatabasePath)
	}
	if cfg.Retention() != 5*time.Minute {
		t.Fatalf("unexpected retention: %s", cfg.Retention())
	}
	if cfg.Client.ServerURL != "http://example.com:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Client.ServerURL)
	}
}

func TestConfigFileKeyTakesPrecedenceOverEnv(t *testing.T) {
	clearCredentialEnv(t)
	configPath := filepath.Join(t.TempDir(), "minutes.toml")
	contents := "[transcription]\napi_key = \"file-key\"\n\n[paths]\napi_token = \"file-token\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("MINUTES_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.APIKey != "file-key" {
		t.Errorf("expected file key to win, got %q", cfg.Transcription.APIKey)
	}
	if cfg.Generation.APIKey != "env-key" {
		t.Errorf("expected env fallback for generation key, got %q", cfg.Generation.APIKey)
	}
	if cfg.Paths.APIToken != "file-token" {
		t.Errorf("expected file token to win, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[transcription]") {
		t.Fatalf("sample config missing transcription section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "minutes") {
		t.Fatalf("expected staging dir to contain minutes, got %q", cfg.Paths.StagingDir)
	}
	if cfg.Client.PollIntervalMS != 500 {
		t.Fatalf("expected poll interval 500, got %d", cfg.Client.PollIntervalMS)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Provider = "azure"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown transcription provider")
	}

	cfg = config.Default()
	cfg.Generation.Provider = "claude"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown generation provider")
	}

	cfg = config.Default()
	cfg.Export.Format = "pdf"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown export format")
	}

	cfg = config.Default()
	cfg.Export.AzureConnectionString = "DefaultEndpointsProtocol=https"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when azure container missing")
	}

	cfg = config.Default()
	cfg.Tasks.Store = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown task store")
	}

	cfg = config.Default()
	cfg.Tasks.RetentionMinutes = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative retention")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidateCredentialsRequiresKeys(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateCredentials(); err == nil {
		t.Fatal("expected error without transcription key")
	}

	cfg.Transcription.Provider = "whisperx"
	if err := cfg.ValidateCredentials(); err == nil || !strings.Contains(err.Error(), "generation.api_key") {
		t.Fatalf("expected generation key error, got %v", err)
	}

	cfg.Generation.APIKeys = []string{"abc"}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
