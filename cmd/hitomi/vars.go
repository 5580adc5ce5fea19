package cli

import (
	"github.com/neboloop/hitomi/internal/config"
	"github.com/neboloop/hitomi/internal/logging"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile string
	verbose bool
	noColor bool

	// run flags; zero values keep the config file's settings
	engineName  string
	metricsAddr string
	osNotify    bool
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

// loadConfig reads --config when given, else the data directory config, and
// configures logging from it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logging.Configure(level, cfg.LogDev)
	return cfg, nil
}

// configPath is the file `run` watches for live changes.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.Path()
}
