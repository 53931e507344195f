package queue

import (
	"time"
)

// Status represents the lifecycle of an ingest job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusTranscribing,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is one unit of ingest work tied to a source URL.
type Job struct {
	ID             int64
	SourceURL      string
	Status         Status
	Priority       int
	ErrorText      string
	ContentID      string
	MediaPath      string
	TranscriptPath string
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ContentMetadata carries the downloader-reported description of an
// ingested item. Raw preserves the full metadata document as JSON.
type ContentMetadata struct {
	Title       string
	Channel     string
	Uploader    string
	UploaderID  string
	DurationSec int64
	UploadDate  string
	WebpageURL  string
	Thumbnail   string
	ViewCount   int64
	LikeCount   int64
	Raw         []byte
}

// ContentRecord is the stored form of an ingested item.
type ContentRecord struct {
	ContentID   string
	SourceURL   string
	Title       string
	Channel     string
	UploaderID  string
	DurationSec int64
	UploadDate  string
	WebpageURL  string
	Thumbnail   string
	ViewCount   int64
	LikeCount   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SegmentInput is one transcript span as produced by the transcription
// tool, with boundaries in floating-point seconds.
type SegmentInput struct {
	Start float64
	End   float64
	Text  string
}

// Segment is one stored transcript span with millisecond boundaries.
type Segment struct {
	ContentID string
	Index     int
	StartMS   int64
	EndMS     int64
	Text      string
}

// JobUpdate carries optional field updates applied alongside a status
// change. Nil pointers keep the stored value.
type JobUpdate struct {
	ErrorText      *string
	ContentID      *string
	MediaPath      *string
	TranscriptPath *string
}

// StringPtr is a convenience for building JobUpdate values.
func StringPtr(s string) *string { return &s }
