package config

import "scribe/internal/tracker"

const (
	defaultConfigPath         = "~/.config/scribe/config.toml"
	defaultStateDir           = "~/.local/share/scribe/state"
	defaultAudioDir           = "~/.local/share/scribe/audio"
	defaultTranscriptDir      = "~/.local/share/scribe/transcripts"
	defaultLogDir             = "~/.local/share/scribe/logs"
	defaultStorageRoot        = "~/.local/share/scribe/blobs"
	defaultDatabasePath       = "~/.local/share/scribe/state/blobs.db"
	defaultAudioFolder        = "audio"
	defaultTranscriptFolder   = "transcripts"
	defaultMinTranscriptChars = 50
	defaultTimeoutSeconds     = 3600
	defaultVADMethod          = "silero"
	defaultLanguage           = "en"
	defaultConcurrency        = 1
	defaultRepeatThreshold    = 3
	defaultSyncRetries        = 3
	defaultMinFreeDiskMiB     = 256
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultAPIBind            = "127.0.0.1:7488"
	defaultMaxUploadMiB       = 512
)

// Blob store backends.
const (
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Transcription engines.
const (
	EngineWhisperX = "whisperx"
	EngineOpenAI   = "openai"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			AudioDir:      defaultAudioDir,
			TranscriptDir: defaultTranscriptDir,
			LogDir:        defaultLogDir,
		},
		Storage: Storage{
			Backend:          BackendLocal,
			Root:             defaultStorageRoot,
			DatabasePath:     defaultDatabasePath,
			AudioFolder:      defaultAudioFolder,
			TranscriptFolder: defaultTranscriptFolder,
		},
		Transcription: Transcription{
			Engine:             EngineWhisperX,
			Quality:            tracker.DefaultQuality,
			Compute:            tracker.DefaultCompute,
			MinTranscriptChars: defaultMinTranscriptChars,
			TimeoutSeconds:     defaultTimeoutSeconds,
			WhisperXVADMethod:  defaultVADMethod,
			WhisperXLanguage:   defaultLanguage,
		},
		Workflow: Workflow{
			Concurrency:     defaultConcurrency,
			RepeatThreshold: defaultRepeatThreshold,
			SyncRetries:     defaultSyncRetries,
			MinFreeDiskMiB:  defaultMinFreeDiskMiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		API: API{
			Bind:         defaultAPIBind,
			MaxUploadMiB: defaultMaxUploadMiB,
		},
	}
}
