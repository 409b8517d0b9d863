// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/tgcourier/internal/cron"
	"github.com/flemzord/tgcourier/internal/delivery"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Snapshot is one call recorded by MockSnapshotStore.
type Snapshot struct {
	At    time.Time
	Stats delivery.StatsSnapshot
}

// MockSnapshotStore keeps snapshots in memory.
type MockSnapshotStore struct {
	SaveErr error

	mu        sync.Mutex
	snapshots []Snapshot
	cutoffs   []time.Time
}

var _ cron.SnapshotStore = (*MockSnapshotStore)(nil)

// SaveSnapshot implements cron.SnapshotStore.
func (m *MockSnapshotStore) SaveSnapshot(_ context.Context, at time.Time, snap delivery.StatsSnapshot) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, Snapshot{At: at, Stats: snap})
	return nil
}

// PruneBefore implements cron.SnapshotStore.
func (m *MockSnapshotStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)

	kept := m.snapshots[:0]
	var pruned int64
	for _, s := range m.snapshots {
		if s.At.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, s)
	}
	m.snapshots = kept
	return pruned, nil
}

// Snapshots returns the stored snapshots.
func (m *MockSnapshotStore) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.snapshots...)
}

// Cutoffs returns the cutoffs passed to PruneBefore.
func (m *MockSnapshotStore) Cutoffs() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.cutoffs...)
}
