package config

const (
	defaultWatchDir         = "~/inbox"
	defaultVaultDir         = "~/vault"
	defaultNotesDir         = "notes"
	defaultAttachmentsDir   = "attachments"
	defaultLogDir           = "~/.local/share/inkwell/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultStableSeconds    = 3
	defaultMaxWaitSeconds   = 60
	defaultFolderTimeout    = 30
	defaultScanInterval     = 300
	defaultTickMillis       = 1000
	defaultHealthInterval   = 3600
	defaultStatAttempts     = 3
	defaultQueueSize        = 100
	defaultMaxWorkers       = 1
	defaultDrainTimeout     = 10
	defaultRetainedJobs     = 100
	defaultMaxRetryAttempts = 3
	defaultRetentionDays    = 90
	defaultOllamaBaseURL    = "http://localhost:11434"
	defaultOllamaModel      = "mistral"
	defaultOllamaVision     = "llava"
	defaultOllamaTimeout    = 300
	defaultTranscriberBin   = "whisper"
	defaultTranscriberModel = "medium"
	defaultTranscriberTO    = 1800
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:       defaultWatchDir,
			VaultDir:       defaultVaultDir,
			NotesDir:       defaultNotesDir,
			AttachmentsDir: defaultAttachmentsDir,
			LogDir:         defaultLogDir,
		},
		Stability: Stability{
			RequiredStableSeconds: defaultStableSeconds,
			MaxWaitSeconds:        defaultMaxWaitSeconds,
			FolderTimeoutSeconds:  defaultFolderTimeout,
			ScanIntervalSeconds:   defaultScanInterval,
			TickIntervalMillis:    defaultTickMillis,
			HealthIntervalSeconds: defaultHealthInterval,
			StatAttempts:          defaultStatAttempts,
		},
		Queue: Queue{
			MaxSize:             defaultQueueSize,
			MaxWorkers:          defaultMaxWorkers,
			DrainTimeoutSeconds: defaultDrainTimeout,
			RetainedJobs:        defaultRetainedJobs,
		},
		Retry: Retry{
			MaxAttempts: defaultMaxRetryAttempts,
		},
		Ledger: Ledger{
			RetentionDays: defaultRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Ollama: Ollama{
			BaseURL:        defaultOllamaBaseURL,
			Model:          defaultOllamaModel,
			VisionModel:    defaultOllamaVision,
			Temperature:    0.3,
			TimeoutSeconds: defaultOllamaTimeout,
		},
		Transcriber: Transcriber{
			Binary:         defaultTranscriberBin,
			Model:          defaultTranscriberModel,
			TimeoutSeconds: defaultTranscriberTO,
		},
	}
}
