package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	var err error
	if strings.TrimSpace(c.Tasks.DatabasePath) == "" {
		c.Tasks.DatabasePath = defaultDatabasePath
	}
	if c.Tasks.DatabasePath, err = expandPath(c.Tasks.DatabasePath); err != nil {
		return fmt.Errorf("tasks.database_path: %w", err)
	}
	c.normalizeTranscription()
	c.normalizeGeneration()
	c.normalizeExport()
	c.normalizeTasks()
	c.normalizeClient()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
			return fmt.Errorf("paths.inbox_dir: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MINUTES_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = defaultTranscriptionProvider
	}
	if t.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			t.APIKey = strings.TrimSpace(value)
		}
	}
	t.BaseURL = strings.TrimSpace(t.BaseURL)
	if t.BaseURL == "" {
		t.BaseURL = defaultTranscriptionBaseURL
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultTranscriptionModel
	}
	t.Language = strings.TrimSpace(t.Language)
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = defaultTranscriptionTimeout
	}
	if strings.TrimSpace(t.WhisperXBinary) == "" {
		t.WhisperXBinary = defaultWhisperXBinary
	}
	if strings.TrimSpace(t.WhisperXModel) == "" {
		t.WhisperXModel = defaultWhisperXModel
	}
}

func (c *Config) normalizeGeneration() {
	g := &c.Generation
	g.Provider = strings.ToLower(strings.TrimSpace(g.Provider))
	if g.Provider == "" {
		g.Provider = defaultGenerationProvider
	}
	if g.APIKey == "" && len(g.APIKeys) == 0 {
		envName := "OPENAI_API_KEY"
		if g.Provider == "gemini" {
			envName = "GEMINI_API_KEY"
		}
		if value, ok := os.LookupEnv(envName); ok {
			g.APIKey = strings.TrimSpace(value)
		}
	}
	g.BaseURL = strings.TrimSpace(g.BaseURL)
	if g.BaseURL == "" {
		g.BaseURL = defaultGenerationBaseURL
	}
	g.Model = strings.TrimSpace(g.Model)
	if g.Model == "" {
		if g.Provider == "gemini" {
			g.Model = defaultGeminiModel
		} else {
			g.Model = defaultOpenAIModel
		}
	}
	g.Language = strings.TrimSpace(g.Language)
	if g.TimeoutSeconds <= 0 {
		g.TimeoutSeconds = defaultGenerationTimeout
	}
	if g.RetryAttempts <= 0 {
		g.RetryAttempts = 1
	}
}

func (c *Config) normalizeExport() {
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))
	if c.Export.Format == "" {
		c.Export.Format = defaultExportFormat
	}
	if c.Export.AzureConnectionString == "" {
		if value, ok := os.LookupEnv("AZURE_STORAGE_CONNECTION_STRING"); ok {
			c.Export.AzureConnectionString = strings.TrimSpace(value)
		}
	}
	c.Export.AzureContainer = strings.TrimSpace(c.Export.AzureContainer)
}

func (c *Config) normalizeTasks() {
	c.Tasks.Store = strings.ToLower(strings.TrimSpace(c.Tasks.Store))
	if c.Tasks.Store == "" {
		c.Tasks.Store = defaultTaskStore
	}
	if c.Tasks.SweepIntervalSeconds <= 0 {
		c.Tasks.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.Tasks.MaxConcurrent <= 0 {
		c.Tasks.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Tasks.MaxUploadMB <= 0 {
		c.Tasks.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeClient() {
	c.Client.ServerURL = strings.TrimRight(strings.TrimSpace(c.Client.ServerURL), "/")
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = "http://" + c.Paths.APIBind
	}
	if c.Client.PollIntervalMS <= 0 {
		c.Client.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Client.MaxTransportFailures <= 0 {
		c.Client.MaxTransportFailures = defaultMaxTransportFailures
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
