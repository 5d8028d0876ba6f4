package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials checks that the collaborators the daemon talks to have
// credentials. The CLI skips this since it only talks to the daemon.
func (c *Config) ValidateCredentials() error {
	if c.Transcription.Provider == "openai" && c.Transcription.APIKey == "" {
		return fmt.Errorf("transcription.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'minutes config init')", configHint())
	}
	if len(c.GenerationKeys()) == 0 {
		env := "OPENAI_API_KEY"
		if c.Generation.Provider == "gemini" {
			env = "GEMINI_API_KEY"
		}
		return fmt.Errorf("generation.api_key is required. Set %s env var or edit %s", env, configHint())
	}
	return nil
}

func configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return "~/.config/minutes/config.toml"
	}
	return path
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case "openai", "whisperx":
	default:
		return fmt.Errorf("transcription.provider must be openai or whisperx, got %q", c.Transcription.Provider)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	switch c.Generation.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("generation.provider must be openai or gemini, got %q", c.Generation.Provider)
	}
	if c.Generation.RetryAttempts > 10 {
		return errors.New("generation.retry_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.Format {
	case "docx", "html", "markdown":
	default:
		return fmt.Errorf("export.format must be docx, html, or markdown, got %q", c.Export.Format)
	}
	if c.Export.AzureConnectionString != "" && c.Export.AzureContainer == "" {
		return errors.New("export.azure_container must be set when an Azure connection string is configured")
	}
	return nil
}

func (c *Config) validateTasks() error {
	switch c.Tasks.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("tasks.store must be memory or sqlite, got %q", c.Tasks.Store)
	}
	if c.Tasks.RetentionMinutes < 0 {
		return errors.New("tasks.retention_minutes must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
