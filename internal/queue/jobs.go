package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, source_url, status, priority, error_text,
	content_id, media_path, transcript_path,
	created_at, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job            Job
		status         string
		errorText      sql.NullString
		contentID      sql.NullString
		mediaPath      sql.NullString
		transcriptPath sql.NullString
		createdAt      sql.NullString
		startedAt      sql.NullString
		finishedAt     sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.SourceURL, &status, &job.Priority, &errorText,
		&contentID, &mediaPath, &transcriptPath,
		&createdAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.ErrorText = errorText.String
	job.ContentID = contentID.String
	job.MediaPath = mediaPath.String
	job.TranscriptPath = transcriptPath.String
	job.CreatedAt = parseTimestamp(createdAt)
	job.StartedAt = parseTimestamp(startedAt)
	job.FinishedAt = parseTimestamp(finishedAt)
	return &job, nil
}

// Enqueue inserts one queued job per URL, preserving the given order.
// URLs are not deduplicated; re-ingesting means enqueueing again.
func (s *Store) Enqueue(ctx context.Context, urls []string, priority int) ([]int64, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	now := timestamp(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, 0, len(urls))
	for _, url := range urls {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO ingest_jobs(source_url, status, priority, created_at)
			 VALUES (?, ?, ?, ?)`,
			url, StatusQueued, priority, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert job for %s: %w", url, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	return ids, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM ingest_jobs WHERE id = ? LIMIT 1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns the most recently enqueued jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM ingest_jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// UpdateStatus sets a job's status and applies any provided optional
// fields, keeping previous values where the update leaves them nil.
// finished_at is stamped automatically on transition into a terminal
// state.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, update JobUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	var finishedAt any
	if status.Terminal() {
		finishedAt = timestamp(time.Now())
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_jobs
		 SET status = ?,
		     error_text = COALESCE(?, error_text),
		     content_id = COALESCE(?, content_id),
		     media_path = COALESCE(?, media_path),
		     transcript_path = COALESCE(?, transcript_path),
		     finished_at = COALESCE(?, finished_at)
		 WHERE id = ?`,
		status,
		optString(update.ErrorText),
		optString(update.ContentID),
		optString(update.MediaPath),
		optString(update.TranscriptPath),
		finishedAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// DoneJobRef points at the latest successfully completed job for one
// content id.
type DoneJobRef struct {
	JobID          int64
	ContentID      string
	MediaPath      string
	TranscriptPath string
}

// LatestDoneByContent returns, per content id, the newest done job's
// resolved paths. limit <= 0 returns all.
func (s *Store) LatestDoneByContent(ctx context.Context, limit int) ([]DoneJobRef, error) {
	query := `
		WITH latest_done AS (
			SELECT content_id, MAX(id) AS max_id
			FROM ingest_jobs
			WHERE status = 'done' AND content_id IS NOT NULL
			GROUP BY content_id
		)
		SELECT j.id, j.content_id, j.media_path, j.transcript_path
		FROM ingest_jobs j
		JOIN latest_done ld ON ld.max_id = j.id
		ORDER BY j.id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list latest done jobs: %w", err)
	}
	defer rows.Close()

	var refs []DoneJobRef
	for rows.Next() {
		var (
			ref            DoneJobRef
			mediaPath      sql.NullString
			transcriptPath sql.NullString
		)
		if err := rows.Scan(&ref.JobID, &ref.ContentID, &mediaPath, &transcriptPath); err != nil {
			return nil, fmt.Errorf("scan done job: %w", err)
		}
		ref.MediaPath = mediaPath.String
		ref.TranscriptPath = transcriptPath.String
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate done jobs: %w", err)
	}
	return refs, nil
}

func optString(ptr *string) any {
	if ptr == nil {
		return nil
	}
	return *ptr
}
