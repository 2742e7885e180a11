package config

const (
	defaultConfigPath          = "~/.config/siactl/config.toml"
	defaultStateDir            = "~/.local/share/siactl"
	defaultLogDir              = "~/.local/share/siactl/logs"
	defaultSiadBinary          = "siad"
	defaultAPIAddr             = "localhost:9980"
	defaultRPCAddr             = ":9981"
	defaultHostAddr            = ":9982"
	defaultStopGraceSeconds    = 30
	defaultUserAgent           = "Sia-Agent"
	defaultCallTimeoutSeconds  = 10
	defaultProbeTimeoutSeconds = 600
	defaultProbePath           = "/gateway"
	defaultPollIntervalMillis  = 1000
	defaultMaxSockets          = 20
	defaultRateBurst           = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultMetricsBind         = "127.0.0.1:9983"
	apiPasswordEnv             = "SIACTL_API_PASSWORD"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Siad: Siad{
			Binary:           defaultSiadBinary,
			APIAddr:          defaultAPIAddr,
			RPCAddr:          defaultRPCAddr,
			HostAddr:         defaultHostAddr,
			StopGraceSeconds: defaultStopGraceSeconds,
		},
		Client: Client{
			UserAgent:           defaultUserAgent,
			CallTimeoutSeconds:  defaultCallTimeoutSeconds,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			ProbePath:           defaultProbePath,
			PollIntervalMillis:  defaultPollIntervalMillis,
			MaxSockets:          defaultMaxSockets,
			RateBurst:           defaultRateBurst,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
	}
}
