package config

const (
	defaultDataDir            = "~/.local/share/courier"
	defaultLogDir             = "~/.local/share/courier/logs"
	defaultRequestTimeout     = 30
	defaultUploadContentType  = "image/jpeg"
	defaultPollInterval       = 30
	defaultOnlineSettleDelay  = 2
	defaultCompletedRetention = 300
	defaultPhotoMaxAttempts   = 5
	defaultActionMaxAttempts  = 3
	defaultTranscodeQuality   = 80
	defaultTranscodeMaxWidth  = 1600
	defaultProbeInterval      = 15
	defaultProbeTimeout       = 5
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Backend: Backend{
			RequestTimeout:    defaultRequestTimeout,
			UploadContentType: defaultUploadContentType,
		},
		Queue: Queue{
			PollInterval:       defaultPollInterval,
			OnlineSettleDelay:  defaultOnlineSettleDelay,
			CompletedRetention: defaultCompletedRetention,
			PhotoMaxAttempts:   defaultPhotoMaxAttempts,
			ActionMaxAttempts:  defaultActionMaxAttempts,
		},
		Transcode: Transcode{
			Quality:  defaultTranscodeQuality,
			MaxWidth: defaultTranscodeMaxWidth,
		},
		Network: Network{
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
			NetlinkEvents: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Failures:       true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
