package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SegmentMatch is one transcript span matching a search, joined with its
// content metadata and the latest done job's resolved paths.
type SegmentMatch struct {
	ContentID      string
	StartMS        int64
	EndMS          int64
	Text           string
	Title          string
	SourceURL      string
	MediaPath      string
	TranscriptPath string
}

// ContentMatch aggregates segment matches per content item.
type ContentMatch struct {
	ContentID      string
	Title          string
	MatchCount     int
	FirstStartMS   int64
	MediaPath      string
	TranscriptPath string
}

// SearchSegments finds transcript spans containing the query text,
// case-insensitively. Results are ordered by content id then time.
func (s *Store) SearchSegments(ctx context.Context, query string, limit int) ([]SegmentMatch, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH latest_done AS (
			SELECT content_id, MAX(id) AS max_id
			FROM ingest_jobs
			WHERE status = 'done' AND content_id IS NOT NULL
			GROUP BY content_id
		)
		SELECT
			ts.content_id,
			ts.start_ms,
			ts.end_ms,
			ts.text,
			c.title,
			c.source_url,
			j.media_path,
			j.transcript_path
		FROM transcript_segments ts
		JOIN content c
		  ON c.content_id = ts.content_id
		LEFT JOIN latest_done ld
		  ON ld.content_id = ts.content_id
		LEFT JOIN ingest_jobs j
		  ON j.id = ld.max_id
		WHERE LOWER(ts.text) LIKE ?
		ORDER BY ts.content_id ASC, ts.start_ms ASC
		LIMIT ?`,
		"%"+needle+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}
	defer rows.Close()

	var matches []SegmentMatch
	for rows.Next() {
		var (
			match          SegmentMatch
			title          sql.NullString
			mediaPath      sql.NullString
			transcriptPath sql.NullString
		)
		if err := rows.Scan(
			&match.ContentID, &match.StartMS, &match.EndMS, &match.Text,
			&title, &match.SourceURL, &mediaPath, &transcriptPath,
		); err != nil {
			return nil, fmt.Errorf("scan segment match: %w", err)
		}
		match.Title = title.String
		match.MediaPath = mediaPath.String
		match.TranscriptPath = transcriptPath.String
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment matches: %w", err)
	}
	return matches, nil
}

// SearchContent groups segment matches by content item, ordered by
// match count then earliest hit.
func (s *Store) SearchContent(ctx context.Context, query string, limit int) ([]ContentMatch, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH latest_done AS (
			SELECT content_id, MAX(id) AS max_id
			FROM ingest_jobs
			WHERE status = 'done' AND content_id IS NOT NULL
			GROUP BY content_id
		)
		SELECT
			ts.content_id,
			COALESCE(c.title, ts.content_id) AS title,
			COUNT(*) AS match_count,
			MIN(ts.start_ms) AS first_start_ms,
			j.media_path,
			j.transcript_path
		FROM transcript_segments ts
		JOIN content c
		  ON c.content_id = ts.content_id
		LEFT JOIN latest_done ld
		  ON ld.content_id = ts.content_id
		LEFT JOIN ingest_jobs j
		  ON j.id = ld.max_id
		WHERE LOWER(ts.text) LIKE ?
		GROUP BY ts.content_id, c.title, j.media_path, j.transcript_path
		ORDER BY match_count DESC, first_start_ms ASC
		LIMIT ?`,
		"%"+needle+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	defer rows.Close()

	var matches []ContentMatch
	for rows.Next() {
		var (
			match          ContentMatch
			mediaPath      sql.NullString
			transcriptPath sql.NullString
		)
		if err := rows.Scan(
			&match.ContentID, &match.Title, &match.MatchCount, &match.FirstStartMS,
			&mediaPath, &transcriptPath,
		); err != nil {
			return nil, fmt.Errorf("scan content match: %w", err)
		}
		match.MediaPath = mediaPath.String
		match.TranscriptPath = transcriptPath.String
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content matches: %w", err)
	}
	return matches, nil
}
