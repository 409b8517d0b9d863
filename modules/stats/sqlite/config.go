package sqlite

import (
	"fmt"
	"time"

	"github.com/flemzord/tgcourier/internal/cron"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "stats.db"
	defaultRetention   = 30 * 24 * time.Hour
)

// Config holds the SQLite stats module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/stats.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Schedule is the cron expression for snapshots. Defaults to every 5 minutes.
	Schedule string `yaml:"schedule"`

	// PruneSchedule is the cron expression for retention. Defaults to hourly.
	PruneSchedule string `yaml:"prune_schedule"`

	// Retention is how long snapshots are kept. Defaults to 30 days;
	// a negative value keeps everything.
	Retention time.Duration `yaml:"retention"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.Schedule == "" {
		c.Schedule = (&cron.StatsSnapshotJob{}).Schedule()
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = (&cron.StatsRetentionJob{}).Schedule()
	}
	if c.Retention == 0 {
		c.Retention = defaultRetention
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if err := cron.ValidateSchedule(c.Schedule); err != nil {
		return fmt.Errorf("sqlite: schedule: %w", err)
	}
	if err := cron.ValidateSchedule(c.PruneSchedule); err != nil {
		return fmt.Errorf("sqlite: prune_schedule: %w", err)
	}
	return nil
}
