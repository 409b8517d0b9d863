package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/tgcourier/internal/cron"
	"github.com/flemzord/tgcourier/internal/delivery"
)

// timeLayout is fixed width so taken_at sorts lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const columns = `taken_at, sends, edits, chunks, not_modified, throttled, retries,
	resplits, markup_fallbacks, truncations, failures, limiter_waits`

var _ cron.SnapshotStore = (*Store)(nil)

// Store persists delivery counter snapshots.
type Store struct {
	db *sql.DB
}

// SaveSnapshot records snap as taken at at. A second snapshot with the
// same timestamp replaces the first.
func (s *Store) SaveSnapshot(ctx context.Context, at time.Time, snap delivery.StatsSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO delivery_stats (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(at),
		snap.Sends, snap.Edits, snap.Chunks, snap.NotModified, snap.Throttled, snap.Retries,
		snap.Resplits, snap.MarkupFallbacks, snap.Truncations, snap.Failures, snap.LimiterWaits,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save snapshot: %w", err)
	}
	return nil
}

// PruneBefore deletes snapshots taken before cutoff and reports how many
// were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM delivery_stats WHERE taken_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune snapshots: %w", err)
	}
	return n, nil
}

// Latest returns the most recent snapshot. ok is false when none exist.
func (s *Store) Latest(ctx context.Context) (rec delivery.StatsRecord, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM delivery_stats ORDER BY taken_at DESC LIMIT 1`)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return delivery.StatsRecord{}, false, nil
	}
	if err != nil {
		return delivery.StatsRecord{}, false, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}
	return rec, true, nil
}

// History returns up to limit snapshots taken at or after since, oldest
// first. A non-positive limit returns every match.
func (s *Store) History(ctx context.Context, since time.Time, limit int) ([]delivery.StatsRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+` FROM delivery_stats
		WHERE taken_at >= ?
		ORDER BY taken_at ASC
		LIMIT ?`,
		formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []delivery.StatsRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan snapshot: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ping checks that the database answers a query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (delivery.StatsRecord, error) {
	var (
		takenAt string
		st      delivery.StatsSnapshot
	)
	err := sc.Scan(&takenAt,
		&st.Sends, &st.Edits, &st.Chunks, &st.NotModified, &st.Throttled, &st.Retries,
		&st.Resplits, &st.MarkupFallbacks, &st.Truncations, &st.Failures, &st.LimiterWaits,
	)
	if err != nil {
		return delivery.StatsRecord{}, err
	}
	at, err := time.Parse(timeLayout, takenAt)
	if err != nil {
		return delivery.StatsRecord{}, fmt.Errorf("parse taken_at %q: %w", takenAt, err)
	}
	return delivery.StatsRecord{At: at, Stats: st}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
