package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext atomically assigns the highest-priority, oldest queued job
// to the caller, flipping it to downloading with started_at stamped and
// any stale error text cleared. The claim is a single conditional update
// so concurrent callers can never receive the same job. Returns
// (nil, nil) when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	for {
		var candidateID int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM ingest_jobs
			 WHERE status = 'queued'
			 ORDER BY priority DESC, created_at ASC, id ASC
			 LIMIT 1`,
		).Scan(&candidateID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claim candidate: %w", err)
		}

		job, err := s.claim(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		// Lost the race for this candidate; another worker claimed it
		// between our select and update. Pick again.
	}
}

// ClaimByID claims a specific job, succeeding only while it is still
// queued. Returns ErrJobNotFound for unknown ids and ErrJobNotQueued
// when the job exists in any other state.
func (s *Store) ClaimByID(ctx context.Context, id int64) (*Job, error) {
	job, err := s.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return job, nil
	}

	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM ingest_jobs WHERE id = ? LIMIT 1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check job %d: %w", id, err)
	}
	return nil, fmt.Errorf("%w: job %d is %s", ErrJobNotQueued, id, status)
}

// claim performs the conditional queued->downloading flip. A nil job
// with nil error means the job was not claimable (missing or not
// queued).
func (s *Store) claim(ctx context.Context, id int64) (*Job, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_jobs
		 SET status = 'downloading', started_at = ?, error_text = NULL
		 WHERE id = ? AND status = 'queued'`,
		timestamp(time.Now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetJob(ctx, id)
}
