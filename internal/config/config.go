package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	ExportDir  string `toml:"export_dir"`
	InboxDir   string `toml:"inbox_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Transcription contains speech-to-text collaborator settings.
type Transcription struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	WhisperXBinary string `toml:"whisperx_binary"`
	WhisperXModel  string `toml:"whisperx_model"`
}

// Generation contains text-generation collaborator settings shared by minutes
// generation and edit instructions.
type Generation struct {
	Provider       string   `toml:"provider"`
	APIKey         string   `toml:"api_key"`
	APIKeys        []string `toml:"api_keys"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	Language       string   `toml:"language"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	RetryAttempts  int      `toml:"retry_attempts"`
}

// Export contains document export settings.
type Export struct {
	Format                string `toml:"format"`
	AzureConnectionString string `toml:"azure_connection_string"`
	AzureContainer        string `toml:"azure_container"`
}

// Tasks contains task store, retention, and concurrency settings.
type Tasks struct {
	Store                string `toml:"store"`
	DatabasePath         string `toml:"database_path"`
	RetentionMinutes     int    `toml:"retention_minutes"`
	SweepIntervalSeconds int    `toml:"sweep_interval_seconds"`
	MaxConcurrent        int    `toml:"max_concurrent"`
	MaxUploadMB          int    `toml:"max_upload_mb"`
}

// Client contains CLI polling settings.
type Client struct {
	ServerURL            string `toml:"server_url"`
	PollIntervalMS       int    `toml:"poll_interval_ms"`
	MaxTransportFailures int    `toml:"max_transport_failures"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the minutes daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Transcription: speech-to-text provider (OpenAI or local WhisperX)
//   - Generation: LLM provider for minutes and edit instructions
//   - Export: output format and optional Azure Blob publishing
//   - Tasks: task store backend, retention, and worker limits
//   - Client: CLI polling cadence and failure tolerance
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Generation    Generation    `toml:"generation"`
	Export        Export        `toml:"export"`
	Tasks         Tasks         `toml:"tasks"`
	Client        Client        `toml:"client"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/minutes/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("minutes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.ExportDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if err := os.MkdirAll(c.Paths.InboxDir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %q: %w", c.Paths.InboxDir, err)
		}
	}
	return nil
}

// Retention returns how long finished tasks stay queryable.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Tasks.RetentionMinutes) * time.Minute
}

// SweepInterval returns how often the retention sweep runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Tasks.SweepIntervalSeconds) * time.Second
}

// PollInterval returns the client polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Client.PollIntervalMS) * time.Millisecond
}

// MaxUploadBytes returns the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Tasks.MaxUploadMB) << 20
}

// GenerationKeys returns the configured generation API keys in rotation order.
// The single api_key, when set, always comes first.
func (c *Config) GenerationKeys() []string {
	keys := make([]string, 0, len(c.Generation.APIKeys)+1)
	seen := make(map[string]struct{})
	for _, key := range append([]string{c.Generation.APIKey}, c.Generation.APIKeys...) {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
