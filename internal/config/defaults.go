package config

const (
	defaultStagingDir            = "~/.local/share/minutes/staging"
	defaultLogDir                = "~/.local/share/minutes/logs"
	defaultExportDir             = "~/.local/share/minutes/exports"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultTranscriptionProvider = "openai"
	defaultTranscriptionBaseURL  = "https://api.openai.com/v1/audio/transcriptions"
	defaultTranscriptionModel    = "whisper-1"
	defaultWhisperXBinary        = "whisperx"
	defaultWhisperXModel         = "large-v3-turbo"
	defaultLanguage              = "ja"
	defaultTranscriptionTimeout  = 600
	defaultGenerationProvider    = "openai"
	defaultGenerationBaseURL     = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel           = "gpt-4-turbo-preview"
	defaultGeminiModel           = "gemini-2.5-flash"
	defaultGenerationTimeout     = 180
	defaultGenerationRetries     = 3
	defaultExportFormat          = "docx"
	defaultTaskStore             = "memory"
	defaultDatabasePath          = "~/.local/share/minutes/tasks.db"
	defaultRetentionMinutes      = 60
	defaultSweepIntervalSeconds  = 60
	defaultMaxConcurrent         = 2
	defaultMaxUploadMB           = 25
	defaultPollIntervalMS        = 500
	defaultMaxTransportFailures  = 5
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			ExportDir:  defaultExportDir,
			APIBind:    defaultAPIBind,
		},
		Transcription: Transcription{
			Provider:       defaultTranscriptionProvider,
			BaseURL:        defaultTranscriptionBaseURL,
			Model:          defaultTranscriptionModel,
			Language:       defaultLanguage,
			TimeoutSeconds: defaultTranscriptionTimeout,
			WhisperXBinary: defaultWhisperXBinary,
			WhisperXModel:  defaultWhisperXModel,
		},
		Generation: Generation{
			Provider:       defaultGenerationProvider,
			BaseURL:        defaultGenerationBaseURL,
			Language:       defaultLanguage,
			TimeoutSeconds: defaultGenerationTimeout,
			RetryAttempts:  defaultGenerationRetries,
		},
		Export: Export{
			Format: defaultExportFormat,
		},
		Tasks: Tasks{
			Store:                defaultTaskStore,
			DatabasePath:         defaultDatabasePath,
			RetentionMinutes:     defaultRetentionMinutes,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
			MaxConcurrent:        defaultMaxConcurrent,
			MaxUploadMB:          defaultMaxUploadMB,
		},
		Client: Client{
			PollIntervalMS:       defaultPollIntervalMS,
			MaxTransportFailures: defaultMaxTransportFailures,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
