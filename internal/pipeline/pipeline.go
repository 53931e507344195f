package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"alogger/internal/config"
	"alogger/internal/logging"
	"alogger/internal/media/ffprobe"
	"alogger/internal/media/resolve"
	"alogger/internal/procrun"
	"alogger/internal/queue"
	"alogger/internal/services"
	"alogger/internal/whisper"
	"alogger/internal/ytdlp"
)

// Stage names, in execution order.
const (
	StageMetadata   = "metadata"
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageIndex      = "index"
)

var stageTitler = cases.Title(language.English)

// StageLabel renders a stage name for display.
func StageLabel(stage string) string {
	return stageTitler.String(stage)
}

// ErrNoAudioStream reports media confirmed to carry no audio.
var ErrNoAudioStream = errors.New("media has no audio stream")

// Progress describes one stage transition for external observers. The
// callback is purely informational; a nil observer changes nothing.
type Progress struct {
	JobID     int64
	Stage     string
	ContentID string
	Message   string
}

// Outcome carries what the pipeline produced, including partial results
// when a later stage failed, so the caller can clean up or notify.
type Outcome struct {
	ContentID      string
	Title          string
	MediaPath      string
	TranscriptPath string
}

// Stages wires the external tools and the store into the ingest flow.
type Stages struct {
	cfg         *config.Config
	store       *queue.Store
	downloader  *ytdlp.Client
	transcriber *whisper.Client
	prober      *ffprobe.Prober
	resolver    *resolve.Resolver
	logger      *slog.Logger
}

// New constructs the pipeline from configuration.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Stages, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if store == nil {
		return nil, errors.New("store required")
	}
	logger = logging.NewComponentLogger(logger, "pipeline")

	downloader, err := ytdlp.New(cfg.Tools.YtDlpBinary, cfg.Tools.FFmpegBinary)
	if err != nil {
		return nil, err
	}
	transcriber, err := whisper.New(
		cfg.Tools.WhisperBinary,
		cfg.Tools.WhisperModel,
		cfg.Tools.WhisperModelDir,
		cfg.Tools.WhisperLang,
	)
	if err != nil {
		return nil, err
	}
	prober, err := ffprobe.New(cfg.Tools.FFprobeBinary)
	if err != nil {
		return nil, err
	}
	resolver, err := resolve.New(prober, cfg.Tools.FFmpegBinary, logger)
	if err != nil {
		return nil, err
	}

	return &Stages{
		cfg:         cfg,
		store:       store,
		downloader:  downloader,
		transcriber: transcriber,
		prober:      prober,
		resolver:    resolver,
		logger:      logger,
	}, nil
}

// Run executes all stages for a claimed job. The returned Outcome is
// valid even on error and reflects whatever stages completed.
func (p *Stages) Run(ctx context.Context, job *queue.Job, control procrun.Control, observe func(Progress)) (outcome Outcome, err error) {
	currentStage := ""
	report := func(stage, message string) {
		currentStage = stage
		p.logger.InfoContext(ctx, "stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldStage, stage),
			logging.String(logging.FieldContentID, outcome.ContentID))
		if observe != nil {
			observe(Progress{
				JobID:     job.ID,
				Stage:     stage,
				ContentID: outcome.ContentID,
				Message:   message,
			})
		}
	}
	complete := func() {
		p.logger.InfoContext(ctx, "stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldStage, currentStage),
			logging.String(logging.FieldContentID, outcome.ContentID))
	}
	defer func() {
		if err != nil {
			p.logger.WarnContext(ctx, "stage failed",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String(logging.FieldStage, currentStage),
				logging.String(logging.FieldContentID, outcome.ContentID),
				logging.String(logging.FieldErrorHint, services.ErrorHint(err)))
		}
	}()

	// Stage 1: metadata.
	report(StageMetadata, job.SourceURL)
	meta, err := p.downloader.FetchMetadata(ctx, job.SourceURL, control)
	if err != nil {
		return outcome, err
	}
	outcome.ContentID = meta.ID
	outcome.Title = meta.Title
	// Persist metadata immediately so browsing and duplicate detection
	// work even if a later stage fails.
	if err := p.store.UpsertContent(ctx, meta.ID, job.SourceURL, queue.ContentMetadata{
		Title:       meta.Title,
		Channel:     meta.Channel,
		Uploader:    meta.Uploader,
		UploaderID:  meta.UploaderID,
		DurationSec: meta.Duration,
		UploadDate:  meta.UploadDate,
		WebpageURL:  meta.WebpageURL,
		Thumbnail:   meta.Thumbnail,
		ViewCount:   meta.ViewCount,
		LikeCount:   meta.LikeCount,
		Raw:         meta.Raw,
	}); err != nil {
		return outcome, err
	}
	if err := p.store.UpdateStatus(ctx, job.ID, queue.StatusDownloading, queue.JobUpdate{
		ContentID: queue.StringPtr(meta.ID),
	}); err != nil {
		return outcome, err
	}
	if err := p.checkCancelled(ctx, control); err != nil {
		return outcome, err
	}
	complete()

	// Stage 2: download.
	report(StageDownload, job.SourceURL)
	direct, err := p.downloader.Download(ctx, p.cfg.Paths.MediaDir, job.SourceURL, meta.ID, control)
	if err != nil {
		return outcome, err
	}
	mediaPath := direct
	if mediaPath == "" || p.prober.HasAudio(ctx, mediaPath) != ffprobe.PresencePresent {
		mediaPath, err = p.resolver.ResolvePlayable(ctx, p.cfg.Paths.MediaDir, meta.ID, direct)
		if err != nil {
			return outcome, err
		}
	}
	outcome.MediaPath = mediaPath
	if err := p.store.UpdateStatus(ctx, job.ID, queue.StatusTranscribing, queue.JobUpdate{
		MediaPath: queue.StringPtr(mediaPath),
	}); err != nil {
		return outcome, err
	}
	if err := p.checkCancelled(ctx, control); err != nil {
		return outcome, err
	}
	complete()

	// Stage 3: transcribe. Only a confirmed missing audio stream fails
	// fast; an unknown probe result lets the tool try anyway.
	report(StageTranscribe, mediaPath)
	if p.prober.HasAudio(ctx, mediaPath) == ffprobe.PresenceAbsent {
		return outcome, fmt.Errorf("%w: %s", ErrNoAudioStream, mediaPath)
	}
	transcriptDir := filepath.Join(p.cfg.Paths.TranscriptDir, meta.ID)
	transcriptPath, err := p.transcriber.Transcribe(ctx, mediaPath, transcriptDir, control)
	if err != nil {
		return outcome, err
	}
	outcome.TranscriptPath = transcriptPath
	if err := p.checkCancelled(ctx, control); err != nil {
		return outcome, err
	}
	complete()

	// Stage 4: index.
	report(StageIndex, transcriptPath)
	segments, err := whisper.LoadSegments(transcriptPath)
	if err != nil {
		return outcome, err
	}
	if err := p.store.ReplaceSegments(ctx, meta.ID, segments); err != nil {
		return outcome, err
	}
	if err := p.store.UpdateStatus(ctx, job.ID, queue.StatusDone, queue.JobUpdate{
		TranscriptPath: queue.StringPtr(transcriptPath),
	}); err != nil {
		return outcome, err
	}
	complete()

	p.logger.InfoContext(ctx, "job completed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldContentID, meta.ID),
		logging.Int("segments", len(segments)))
	return outcome, nil
}

func (p *Stages) checkCancelled(ctx context.Context, control procrun.Control) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if control.ShouldTerminate != nil && control.ShouldTerminate() {
		return procrun.ErrTerminated
	}
	return nil
}

// FailureText renders a stage error into the error_text stored on the
// job.
func FailureText(err error) string {
	return services.ErrorHint(err)
}
