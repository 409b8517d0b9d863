package config

import (
	"maps"
	"slices"

	"github.com/flemzord/tgcourier/internal/core"
)

// Resolve returns the configured module IDs in load order. Modules load
// after the modules they require (gateway.http and stats.sqlite after
// channel.telegram) and tracing loads first; ties are alphabetical.
func Resolve(cfg *Config) ([]string, error) {
	return core.Order(slices.Sorted(maps.Keys(cfg.Modules)))
}
