package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/flemzord/tgcourier/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// and checks that all referenced module IDs exist in the registry and can
// be ordered by their requirements. Every ID in required must have a
// config entry.
func Validate(cfg *Config, required ...string) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	known := true
	for _, id := range slices.Sorted(maps.Keys(cfg.Modules)) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			known = false
		}
	}
	if known && len(cfg.Modules) > 0 {
		if _, err := Resolve(cfg); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		}
	}

	for _, id := range required {
		if _, ok := cfg.Modules[id]; !ok {
			errs = append(errs, fmt.Errorf("config: module %q requires configuration but has no entry", id))
		}
	}

	errs = append(errs, validateLog(cfg.Log)...)

	return errors.Join(errs...)
}

func validateLog(l LogConfig) []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q is not text or json", l.Format))
	}
	return errs
}
