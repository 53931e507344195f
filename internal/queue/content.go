package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertContent inserts or overwrites the content record for contentID.
// A missing channel falls back to the uploader name so browsing always
// has something to group by.
func (s *Store) UpsertContent(ctx context.Context, contentID, sourceURL string, meta ContentMetadata) error {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return errors.New("content id required")
	}
	now := timestamp(time.Now())

	channel := meta.Channel
	if channel == "" {
		channel = meta.Uploader
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content(
		    content_id, source_url, title, channel, uploader_id,
		    duration_sec, upload_date, webpage_url, thumbnail,
		    view_count, like_count, metadata_json, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET
		    source_url=excluded.source_url,
		    title=excluded.title,
		    channel=excluded.channel,
		    uploader_id=excluded.uploader_id,
		    duration_sec=excluded.duration_sec,
		    upload_date=excluded.upload_date,
		    webpage_url=excluded.webpage_url,
		    thumbnail=excluded.thumbnail,
		    view_count=excluded.view_count,
		    like_count=excluded.like_count,
		    metadata_json=excluded.metadata_json,
		    updated_at=excluded.updated_at`,
		contentID,
		sourceURL,
		nullableString(meta.Title),
		nullableString(channel),
		nullableString(meta.UploaderID),
		meta.DurationSec,
		nullableString(meta.UploadDate),
		nullableString(meta.WebpageURL),
		nullableString(meta.Thumbnail),
		meta.ViewCount,
		meta.LikeCount,
		nullableString(string(meta.Raw)),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", contentID, err)
	}
	return nil
}

// GetContent fetches one content record.
func (s *Store) GetContent(ctx context.Context, contentID string) (*ContentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT content_id, source_url, title, channel, uploader_id,
		        duration_sec, upload_date, webpage_url, thumbnail,
		        view_count, like_count, created_at, updated_at
		 FROM content WHERE content_id = ? LIMIT 1`, contentID)

	var (
		record      ContentRecord
		title       sql.NullString
		channel     sql.NullString
		uploaderID  sql.NullString
		durationSec sql.NullInt64
		uploadDate  sql.NullString
		webpageURL  sql.NullString
		thumbnail   sql.NullString
		viewCount   sql.NullInt64
		likeCount   sql.NullInt64
		createdAt   sql.NullString
		updatedAt   sql.NullString
	)
	err := row.Scan(
		&record.ContentID, &record.SourceURL, &title, &channel, &uploaderID,
		&durationSec, &uploadDate, &webpageURL, &thumbnail,
		&viewCount, &likeCount, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", contentID, ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content %s: %w", contentID, err)
	}
	record.Title = title.String
	record.Channel = channel.String
	record.UploaderID = uploaderID.String
	record.DurationSec = durationSec.Int64
	record.UploadDate = uploadDate.String
	record.WebpageURL = webpageURL.String
	record.Thumbnail = thumbnail.String
	record.ViewCount = viewCount.Int64
	record.LikeCount = likeCount.Int64
	record.CreatedAt = parseTimestamp(createdAt)
	record.UpdatedAt = parseTimestamp(updatedAt)
	return &record, nil
}
