// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for tgcourier.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Log controls the process-wide slog handler built by the CLI.
	Log LogConfig `yaml:"log"`

	// DataDir is handed to every module through core.AppContext.
	// Relative module paths (e.g. the stats database) resolve against it.
	DataDir string `yaml:"data_dir"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Secrets holds the values Load substituted for credential variables
	// such as ${TELEGRAM_BOT_TOKEN}. The CLI hands them to the log redactor.
	Secrets []string `yaml:"-"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level"`

	// Format is text or json. Empty means text.
	Format string `yaml:"format"`
}
