package queue

import (
	"context"
	"fmt"
	"time"
)

// CountProductionsSince returns how many productions started after cutoff.
func (s *Store) CountProductionsSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM productions WHERE started_at > ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count productions: %w", err)
	}
	return count, nil
}

// TryReserveProduction atomically checks the production count inside the
// accounting window against cap and records a new reservation when below it.
// Returns false when the cap is reached; no row is written in that case.
// A cap of zero or less reserves unconditionally.
func (s *Store) TryReserveProduction(ctx context.Context, cap int, window time.Duration, jobID string) (bool, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if cap > 0 {
		var count int
		row := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(1) FROM productions WHERE started_at > ?`,
			now.Add(-window).Format(time.RFC3339Nano),
		)
		if err := row.Scan(&count); err != nil {
			return false, fmt.Errorf("count productions: %w", err)
		}
		if count >= cap {
			return false, nil
		}
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO productions (job_id, started_at) VALUES (?, ?)`,
		nullableString(jobID),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("record production: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reservation: %w", err)
	}
	return true, nil
}

// PruneProductions removes accounting rows older than cutoff. The table only
// has to cover the rolling window, so old rows are garbage.
func (s *Store) PruneProductions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM productions WHERE started_at <= ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune productions: %w", err)
	}
	return res.RowsAffected()
}
