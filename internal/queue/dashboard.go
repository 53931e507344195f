package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// ActiveJob is one currently processing job as seen by the dashboard.
type ActiveJob struct {
	ID        int64
	SourceURL string
	Status    Status
	CreatedAt time.Time
	StartedAt time.Time
	Elapsed   time.Duration
}

// DashboardSnapshot is a read-side aggregate of queue health. It is
// computed without worker-held locks; a slightly stale view is fine.
type DashboardSnapshot struct {
	Counts         map[Status]int
	ActiveJobs     []ActiveJob
	AvgDuration    time.Duration
	MedianDuration time.Duration
	SampleSize     int
}

const durationSampleSize = 100

// Snapshot aggregates per-status counts, in-flight jobs with elapsed
// time, and average/median completion duration over a bounded recent
// sample of done jobs.
func (s *Store) Snapshot(ctx context.Context) (*DashboardSnapshot, error) {
	snapshot := &DashboardSnapshot{Counts: make(map[Status]int, len(allStatuses))}
	for _, status := range allStatuses {
		snapshot.Counts[status] = 0
	}

	countRows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM ingest_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer countRows.Close()
	for countRows.Next() {
		var status string
		var n int
		if err := countRows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		snapshot.Counts[Status(status)] = n
	}
	if err := countRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	now := time.Now()
	activeRows, err := s.db.QueryContext(ctx,
		`SELECT id, source_url, status, created_at, started_at
		 FROM ingest_jobs
		 WHERE status IN ('downloading', 'transcribing')
		 ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer activeRows.Close()
	for activeRows.Next() {
		var (
			job       ActiveJob
			status    string
			createdAt sql.NullString
			startedAt sql.NullString
		)
		if err := activeRows.Scan(&job.ID, &job.SourceURL, &status, &createdAt, &startedAt); err != nil {
			return nil, fmt.Errorf("scan active job: %w", err)
		}
		job.Status = Status(status)
		job.CreatedAt = parseTimestamp(createdAt)
		job.StartedAt = parseTimestamp(startedAt)
		if !job.StartedAt.IsZero() {
			if elapsed := now.Sub(job.StartedAt); elapsed > 0 {
				job.Elapsed = elapsed
			}
		}
		snapshot.ActiveJobs = append(snapshot.ActiveJobs, job)
	}
	if err := activeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active jobs: %w", err)
	}

	durations, err := s.recentCompletionDurations(ctx, durationSampleSize)
	if err != nil {
		return nil, err
	}
	snapshot.SampleSize = len(durations)
	if len(durations) > 0 {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		snapshot.AvgDuration = total / time.Duration(len(durations))

		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		mid := len(durations) / 2
		if len(durations)%2 == 0 {
			snapshot.MedianDuration = (durations[mid-1] + durations[mid]) / 2
		} else {
			snapshot.MedianDuration = durations[mid]
		}
	}
	return snapshot, nil
}

func (s *Store) recentCompletionDurations(ctx context.Context, sampleSize int) ([]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT started_at, finished_at
		 FROM ingest_jobs
		 WHERE status = 'done'
		   AND started_at IS NOT NULL
		   AND finished_at IS NOT NULL
		 ORDER BY id DESC
		 LIMIT ?`, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample done jobs: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var startedAt, finishedAt sql.NullString
		if err := rows.Scan(&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan done job: %w", err)
		}
		started := parseTimestamp(startedAt)
		finished := parseTimestamp(finishedAt)
		if started.IsZero() || finished.IsZero() {
			continue
		}
		if duration := finished.Sub(started); duration > 0 {
			durations = append(durations, duration)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate done sample: %w", err)
	}
	return durations, nil
}
