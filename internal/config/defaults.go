package config

const (
	defaultOutputDir       = "~/.local/share/chute/output"
	defaultLogDir          = "~/.local/share/chute/logs"
	defaultStateDir        = "~/.local/share/chute/state"
	defaultConcurrency     = 2
	defaultContinueOnError = true
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultHistoryEnabled  = true
	defaultHistoryKeepRuns = 100
	defaultMinFreeMiB      = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Batch: Batch{
			Concurrency:     defaultConcurrency,
			ContinueOnError: defaultContinueOnError,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		History: History{
			Enabled:  defaultHistoryEnabled,
			KeepRuns: defaultHistoryKeepRuns,
		},
		Preflight: Preflight{
			MinFreeMiB: defaultMinFreeMiB,
		},
	}
}
