package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/tgcourier/internal/delivery"
)

// SnapshotStore persists delivery counter snapshots. Defined here so the
// jobs do not depend on a storage backend.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, at time.Time, snap delivery.StatsSnapshot) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatsSnapshotJob copies the Deliverer counters into the store.
type StatsSnapshotJob struct {
	Source       func() delivery.StatsSnapshot
	Store        SnapshotStore
	Logger       *slog.Logger
	ScheduleExpr string           // empty = default "*/5 * * * *"
	Now          func() time.Time // nil = time.Now
}

var _ Job = (*StatsSnapshotJob)(nil)

// Name implements Job.
func (j *StatsSnapshotJob) Name() string { return "stats_snapshot" }

// Schedule implements Job.
func (j *StatsSnapshotJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run records one snapshot.
func (j *StatsSnapshotJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: stats snapshot cancelled: %w", err)
	}
	snap := j.Source()
	if err := j.Store.SaveSnapshot(ctx, now(j.Now), snap); err != nil {
		return fmt.Errorf("cron: stats snapshot: %w", err)
	}
	j.Logger.Debug("cron: stats snapshot saved", "sends", snap.Sends, "failures", snap.Failures)
	return nil
}

// StatsRetentionJob deletes snapshots older than Retention.
type StatsRetentionJob struct {
	Store        SnapshotStore
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string           // empty = default "0 * * * *"
	Now          func() time.Time // nil = time.Now
}

var _ Job = (*StatsRetentionJob)(nil)

// Name implements Job.
func (j *StatsRetentionJob) Name() string { return "stats_retention" }

// Schedule implements Job.
func (j *StatsRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run prunes expired snapshots. A zero Retention keeps everything.
func (j *StatsRetentionJob) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}
	pruned, err := j.Store.PruneBefore(ctx, now(j.Now).Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: stats retention: %w", err)
	}
	if pruned > 0 {
		j.Logger.Info("cron: pruned stats snapshots", "count", pruned, "retention", j.Retention)
	}
	return nil
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
