package config

const (
	defaultLogDir        = "~/.local/share/trackexport/logs"
	defaultHistoryDB     = "~/.local/share/trackexport/history.db"
	defaultOutputDir     = "~/exports"
	defaultEngineBinary  = "lmms"
	defaultFormat        = "wav"
	defaultSampleRate    = 44100
	defaultBitrate       = 160
	defaultDepth         = "16"
	defaultInterpolation = "sinc_fastest"
	defaultOversampling  = "1x"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultNtfyTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
			OutputDir: defaultOutputDir,
		},
		Render: Render{
			EngineBinary:  defaultEngineBinary,
			Format:        defaultFormat,
			SampleRate:    defaultSampleRate,
			Bitrate:       defaultBitrate,
			Depth:         defaultDepth,
			Stereo:        true,
			Interpolation: defaultInterpolation,
			Oversampling:  defaultOversampling,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
