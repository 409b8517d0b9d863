// Package sqlite implements the stats.sqlite module. It snapshots the
// shared Deliverer counters into a SQLite database on a cron schedule,
// prunes old snapshots and publishes the store for the gateway's history
// endpoint. It uses modernc.org/sqlite (pure Go, no CGO).
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/cron"
	"github.com/flemzord/tgcourier/internal/delivery"
	"gopkg.in/yaml.v3"
)

// ServiceStore is the service name the store is registered under.
const ServiceStore = "stats.store"

// delivererService is the service name the Telegram channel registers the
// shared Deliverer under.
const delivererService = "delivery.deliverer"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable  = (*Module)(nil)
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
	_ core.Starter       = (*Module)(nil)
	_ core.Stopper       = (*Module)(nil)
	_ core.HealthChecker = (*Module)(nil)
)

// Module persists delivery statistics.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	store     *Store
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "stats.sqlite",
		New:      func() core.Module { return &Module{} },
		Requires: []core.ModuleID{"channel.telegram"},
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	store, err := Open(context.TODO(), m.config.Path, m.config.BusyTimeout, m.config.walEnabled())
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService(ServiceStore, store)

	m.logger.Info("sqlite stats module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"schedule", m.config.Schedule,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	return m.store.Ping(context.Background())
}

// HealthCheck implements core.HealthChecker. It reports whether the
// database still answers.
func (m *Module) HealthCheck(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Start implements core.Starter. It resolves the Deliverer and starts the
// snapshot and retention jobs.
func (m *Module) Start() error {
	d, err := core.Service[*delivery.Deliverer](m.appCtx, delivererService)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	m.scheduler = cron.NewScheduler(m.logger)
	jobs := []cron.Job{
		&cron.StatsSnapshotJob{
			Source:       d.Stats,
			Store:        m.store,
			Logger:       m.logger,
			ScheduleExpr: m.config.Schedule,
		},
	}
	if m.config.Retention > 0 {
		jobs = append(jobs, &cron.StatsRetentionJob{
			Store:        m.store,
			Retention:    m.config.Retention,
			Logger:       m.logger,
			ScheduleExpr: m.config.PruneSchedule,
		})
	}
	for _, j := range jobs {
		if err := m.scheduler.RegisterJob(j); err != nil {
			return err
		}
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper. A final snapshot is taken so counters
// accumulated since the last tick survive the shutdown.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("sqlite stats module stopping")
	var errs []error
	if m.scheduler != nil {
		if err := m.scheduler.RunNow(ctx, "stats_snapshot"); err != nil && !errors.Is(err, cron.ErrJobBusy) {
			errs = append(errs, err)
		}
		errs = append(errs, m.scheduler.Stop(ctx))
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
	}
	return errors.Join(errs...)
}

// Store returns the snapshot store.
func (m *Module) Store() *Store {
	return m.store
}
