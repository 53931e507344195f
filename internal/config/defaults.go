package config

const (
	defaultDBPath              = "~/.local/share/alogger/alogger.db"
	defaultMediaDir            = "~/.local/share/alogger/media"
	defaultTranscriptDir       = "~/.local/share/alogger/transcripts"
	defaultLogDir              = "~/.local/share/alogger/logs"
	defaultYtDlpBinary         = "yt-dlp"
	defaultWhisperBinary       = "whisper"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultWhisperModel        = "base"
	defaultWhisperModelDir     = "~/.local/share/alogger/whisper_models"
	defaultWhisperLanguage     = "en"
	defaultWorkerCount         = 2
	defaultPollIntervalSeconds = 1.0
	defaultStopTimeoutSeconds  = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultNotifyTimeout       = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DBPath:        defaultDBPath,
			MediaDir:      defaultMediaDir,
			TranscriptDir: defaultTranscriptDir,
			LogDir:        defaultLogDir,
		},
		Tools: Tools{
			YtDlpBinary:     defaultYtDlpBinary,
			WhisperBinary:   defaultWhisperBinary,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			WhisperModel:    defaultWhisperModel,
			WhisperModelDir: defaultWhisperModelDir,
			WhisperLang:     defaultWhisperLanguage,
		},
		Workers: Workers{
			Count:               defaultWorkerCount,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			StopTimeoutSeconds:  defaultStopTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
	}
}
