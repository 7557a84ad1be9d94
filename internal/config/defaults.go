package config

const (
	defaultStateDir          = "~/.local/share/encmirror"
	defaultLogDir            = "~/.local/share/encmirror/logs"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultIngestSocket      = "~/.local/share/encmirror/ingest.sock"
	defaultChangeHistory     = 1000
	defaultConsoleLines      = 800
	defaultMessageHistory    = 500
	defaultSessionTTLSeconds = 60
	defaultFrameTimeout      = 30
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNtfyTimeout       = 10
	defaultNotifyLevel       = "error"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
			IngestSocket: defaultIngestSocket,
		},
		Mirror: Mirror{
			ChangeHistory:  defaultChangeHistory,
			ConsoleLines:   defaultConsoleLines,
			MessageHistory: defaultMessageHistory,
		},
		Preview: Preview{
			SessionTTLSeconds: defaultSessionTTLSeconds,
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			FrameTimeout:      defaultFrameTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			MinLevel:       defaultNotifyLevel,
		},
	}
}
