package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ReplaceSegments transactionally rewrites the transcript for one
// content id: existing rows are deleted, then the provided spans are
// inserted in order. Empty or whitespace-only spans are dropped;
// boundaries are rounded from seconds to milliseconds. Calling it twice
// with the same input yields identical rows, and the FTS index follows
// via triggers.
func (s *Store) ReplaceSegments(ctx context.Context, contentID string, segments []SegmentInput) error {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return errors.New("content id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segments tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transcript_segments WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("clear segments for %s: %w", contentID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_segments(content_id, segment_index, start_ms, end_ms, text)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare segment insert: %w", err)
	}
	defer stmt.Close()

	index := 0
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			contentID, index, secondsToMS(segment.Start), secondsToMS(segment.End), text,
		); err != nil {
			return fmt.Errorf("insert segment %d for %s: %w", index, contentID, err)
		}
		index++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segments for %s: %w", contentID, err)
	}
	return nil
}

// SegmentsByContent returns the stored transcript for one content id in
// time order.
func (s *Store) SegmentsByContent(ctx context.Context, contentID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_id, segment_index, start_ms, end_ms, text
		 FROM transcript_segments
		 WHERE content_id = ?
		 ORDER BY segment_index ASC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list segments for %s: %w", contentID, err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var segment Segment
		if err := rows.Scan(&segment.ContentID, &segment.Index, &segment.StartMS, &segment.EndMS, &segment.Text); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}

func secondsToMS(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
