package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"alogger/internal/config"
	"alogger/internal/logging"
)

const userAgent = "alogger/0.1.0"

// JobEvent describes the job a notification refers to. Zero-valued
// optional fields are omitted from the webhook payload.
type JobEvent struct {
	JobID          int64  `json:"job_id"`
	URL            string `json:"url"`
	WorkerID       int    `json:"worker_id,omitempty"`
	RunID          string `json:"run_id,omitempty"`
	ContentID      string `json:"content_id,omitempty"`
	Title          string `json:"title,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Event is the delivered webhook document: a JobEvent stamped with the
// event name and time.
type Event struct {
	Event string `json:"event"`
	JobEvent
	Timestamp string `json:"timestamp"`
}

// Service defines the notification surface exposed to workers.
type Service interface {
	NotifyJobDone(ctx context.Context, event JobEvent)
	NotifyJobFailed(ctx context.Context, event JobEvent)
}

// NewService builds a notification service. When no webhook URL is
// configured, events are only logged.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	logger = logging.NewComponentLogger(logger, "notifications")

	var webhookURL string
	timeout := 5 * time.Second
	if cfg != nil {
		webhookURL = strings.TrimSpace(cfg.Notifications.WebhookURL)
		if cfg.Notifications.RequestTimeout > 0 {
			timeout = time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		}
	}
	if webhookURL == "" {
		return &logService{logger: logger}
	}
	return &webhookService{
		logService: logService{logger: logger},
		endpoint:   webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

type logService struct {
	logger *slog.Logger
}

func (s *logService) NotifyJobDone(ctx context.Context, event JobEvent) {
	s.logger.InfoContext(ctx, "job done",
		logging.Int64(logging.FieldJobID, event.JobID),
		logging.Int(logging.FieldWorkerID, event.WorkerID),
		logging.String("url", event.URL),
		logging.String(logging.FieldContentID, event.ContentID),
		logging.String("title", event.Title))
}

func (s *logService) NotifyJobFailed(ctx context.Context, event JobEvent) {
	s.logger.WarnContext(ctx, "job failed",
		logging.Int64(logging.FieldJobID, event.JobID),
		logging.Int(logging.FieldWorkerID, event.WorkerID),
		logging.String("url", event.URL),
		logging.String(logging.FieldContentID, event.ContentID),
		logging.String("error_text", event.Error))
}

type webhookService struct {
	logService
	endpoint string
	client   *http.Client
}

func (s *webhookService) NotifyJobDone(ctx context.Context, event JobEvent) {
	s.logService.NotifyJobDone(ctx, event)
	s.post(ctx, Event{
		Event:     "done",
		JobEvent:  event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *webhookService) NotifyJobFailed(ctx context.Context, event JobEvent) {
	s.logService.NotifyJobFailed(ctx, event)
	s.post(ctx, Event{
		Event:     "failed",
		JobEvent:  event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// post delivers one event. Failures are logged and swallowed; a broken
// webhook must never affect job processing.
func (s *webhookService) post(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "encode notification", logging.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.logger.WarnContext(ctx, "build notification request", logging.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "deliver notification", logging.Error(err))
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		s.logger.WarnContext(ctx, "notification rejected",
			logging.String("status", fmt.Sprintf("%d", resp.StatusCode)),
			logging.String("endpoint", s.endpoint))
	}
}
