package config

const (
	defaultAssetDir           = "~/.local/share/assetprep/assets"
	defaultCompressedDir      = "~/.cache/assetprep/compressed"
	defaultLogDir             = "~/.local/share/assetprep/logs"
	defaultMaxVRAMMB          = 2048
	defaultUseCompression     = true
	defaultFrameRate          = 30
	defaultBufferFrames       = 5
	defaultAssetThreads       = 4
	defaultPreload            = "auto"
	defaultCompressionLevel   = "default"
	defaultLockTimeoutSeconds = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMetricsBind        = "127.0.0.1:9464"
	defaultTickMS             = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	useCompression := defaultUseCompression
	frameRate := defaultFrameRate
	bufferFrames := defaultBufferFrames
	assetThreads := defaultAssetThreads
	return Config{
		Paths: Paths{
			AssetDir:      defaultAssetDir,
			CompressedDir: defaultCompressedDir,
			LogDir:        defaultLogDir,
		},
		Budget: Budget{
			MaxVRAMMB: defaultMaxVRAMMB,
		},
		Defaults: AssetOptions{
			UseCompression: &useCompression,
			FrameRate:      &frameRate,
			BufferFrames:   &bufferFrames,
			NumThreads:     &assetThreads,
			Preload:        defaultPreload,
		},
		Compression: Compression{
			Level:              defaultCompressionLevel,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Runner: Runner{
			TickMS: defaultTickMS,
		},
	}
}
