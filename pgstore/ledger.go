package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/securefs/facegate"
)

// Record appends one attempt row. Rows are insert-only; nothing ever updates
// or deletes them.
func (s *Store) Record(ctx context.Context, rec facegate.AttemptRecord) error {
	query :=
		`INSERT INTO attempts (id, identity, attempted_at, outcome, origin)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		 `

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Identity, rec.Timestamp, rec.Outcome.String(), rec.Origin)
	if err != nil {
		return fmt.Errorf("%w: %v", facegate.ErrStorageUnavailable, err)
	}
	return nil
}

// RecentFailures counts failure rows for the identity inside the window
// ending now. The window is evaluated per query, so lockout heals without
// any cleanup job.
func (s *Store) RecentFailures(ctx context.Context, identity string, window time.Duration) (int, error) {
	query :=
		`SELECT COUNT(*) FROM attempts
		 WHERE identity = $1 AND outcome = 'failure' AND attempted_at >= $2
		 `

	var count int
	cutoff := time.Now().Add(-window)
	err := s.db.QueryRowContext(ctx, query, identity, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", facegate.ErrStorageUnavailable, err)
	}
	return count, nil
}
