package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"alogger/internal/config"
	"alogger/internal/logging"
	"alogger/internal/notifications"
	"alogger/internal/pipeline"
	"alogger/internal/procrun"
	"alogger/internal/queue"
)

// KilledByOperatorText is the error text recorded when an operator kills
// a job, distinguishable from a tool's own failure message.
const KilledByOperatorText = "killed by operator"

// Worker states reported in snapshots.
const (
	StateIdle   = "idle"
	StatePaused = "paused"
	StateFailed = "failed"
)

// Snapshot is an immutable copy of a worker's state for display. It
// never exposes the live process handle.
type Snapshot struct {
	WorkerID  int
	State     string
	Paused    bool
	JobID     int64
	URL       string
	ContentID string
	Stage     string
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	LastError string
}

// Runtime is one worker: a claim loop plus operator controls.
type Runtime struct {
	id       int
	cfg      *config.Config
	store    *queue.Store
	stages   *pipeline.Stages
	notifier notifications.Service
	logger   *slog.Logger

	mu        sync.Mutex
	state     string
	paused    bool
	jobID     int64
	url       string
	contentID string
	stage     string
	runID     string
	startedAt time.Time
	lastError string
	handle    *procrun.Handle
	// Kill flags are consumed atomically by the failure handler so a
	// genuine tool crash racing a kill request is never misclassified.
	killRequested bool
	deleteFiles   bool
	stopping      bool

	done chan struct{}
}

// NewRuntime constructs a worker.
func NewRuntime(id int, cfg *config.Config, store *queue.Store, stages *pipeline.Stages, notifier notifications.Service, logger *slog.Logger) *Runtime {
	return &Runtime{
		id:       id,
		cfg:      cfg,
		store:    store,
		stages:   stages,
		notifier: notifier,
		logger: logging.NewComponentLogger(logger, "worker").With(
			logging.Int(logging.FieldWorkerID, id)),
		state: StateIdle,
		done:  make(chan struct{}),
	}
}

// Start launches the claim loop.
func (r *Runtime) Start(ctx context.Context) {
	go r.claimLoop(ctx)
}

// Stop requests shutdown, kills any attached external process, and
// joins the claim loop with a bounded timeout.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	r.stopping = true
	handle := r.handle
	r.mu.Unlock()
	if handle != nil {
		_ = handle.Kill()
	}

	timeout := time.Duration(r.cfg.Workers.StopTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-r.done:
		return nil
	case <-time.After(timeout):
		return errors.New("worker did not stop in time")
	}
}

// TogglePause flips the pause flag, returning "paused" or "resumed". An
// attached external process is suspended or continued so CPU and
// network usage actually stops, not merely future claims.
func (r *Runtime) TogglePause() string {
	r.mu.Lock()
	r.paused = !r.paused
	paused := r.paused
	handle := r.handle
	r.mu.Unlock()

	if handle != nil {
		if paused {
			_ = handle.Suspend()
		} else {
			_ = handle.Resume()
		}
	}
	if paused {
		r.logger.Info("worker paused")
		return "paused"
	}
	r.logger.Info("worker resumed")
	return "resumed"
}

// KillActive requests termination of the current job's external process.
// deleteFiles asks for best-effort cleanup of partial media and
// transcript output after the job fails. Returns false when no job is
// active.
func (r *Runtime) KillActive(deleteFiles bool) bool {
	r.mu.Lock()
	if r.jobID == 0 {
		r.mu.Unlock()
		return false
	}
	r.killRequested = true
	r.deleteFiles = deleteFiles
	handle := r.handle
	r.mu.Unlock()

	if handle != nil {
		_ = handle.Kill()
	}
	r.logger.Info("kill requested", logging.Bool("delete_files", deleteFiles))
	return true
}

// Snapshot returns a value copy of the worker's state under a
// short-held lock.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := Snapshot{
		WorkerID:  r.id,
		State:     r.state,
		Paused:    r.paused,
		JobID:     r.jobID,
		URL:       r.url,
		ContentID: r.contentID,
		Stage:     r.stage,
		RunID:     r.runID,
		StartedAt: r.startedAt,
		LastError: r.lastError,
	}
	if r.paused && r.jobID == 0 {
		snapshot.State = StatePaused
	}
	if !r.startedAt.IsZero() {
		snapshot.Elapsed = time.Since(r.startedAt)
	}
	return snapshot
}

func (r *Runtime) claimLoop(ctx context.Context) {
	defer close(r.done)

	poll := time.Duration(r.cfg.Workers.PollIntervalSeconds * float64(time.Second))
	if poll <= 0 {
		poll = time.Second
	}

	for {
		if r.shouldStop(ctx) {
			return
		}
		if r.isPaused() {
			if !r.sleep(ctx, poll) {
				return
			}
			continue
		}

		job, err := r.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("claim failed", logging.Error(err))
			if !r.sleep(ctx, poll) {
				return
			}
			continue
		}
		if job == nil {
			if !r.sleep(ctx, poll) {
				return
			}
			continue
		}
		r.runJob(ctx, job)
	}
}

// ProcessJobByID claims a specific queued job and runs it to completion
// on the calling goroutine. Used by the single-shot CLI path.
func (r *Runtime) ProcessJobByID(ctx context.Context, jobID int64) error {
	job, err := r.store.ClaimByID(ctx, jobID)
	if err != nil {
		return err
	}
	r.runJob(ctx, job)
	return nil
}

func (r *Runtime) runJob(ctx context.Context, job *queue.Job) {
	runID := r.beginJob(job)
	defer r.endJob()

	logger := r.logger.With(logging.String(logging.FieldRunID, runID))
	control := procrun.Control{
		OnProcess:       r.attach,
		ShouldTerminate: r.shouldTerminate,
	}
	outcome, err := r.stages.Run(ctx, job, control, r.observeProgress)
	if err == nil {
		r.mu.Lock()
		r.lastError = ""
		r.mu.Unlock()
		logger.Info("job succeeded",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldContentID, outcome.ContentID))
		r.notifier.NotifyJobDone(ctx, notifications.JobEvent{
			JobID:          job.ID,
			URL:            job.SourceURL,
			WorkerID:       r.id,
			RunID:          runID,
			ContentID:      outcome.ContentID,
			Title:          outcome.Title,
			TranscriptPath: outcome.TranscriptPath,
		})
		return
	}

	killed, deleteFiles := r.consumeKillFlags()
	errorText := pipeline.FailureText(err)
	if killed {
		errorText = KilledByOperatorText
	}

	// The failure must be recorded even when the run context is gone.
	storeCtx := ctx
	if storeCtx.Err() != nil {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if updateErr := r.store.UpdateStatus(storeCtx, job.ID, queue.StatusFailed, queue.JobUpdate{
		ErrorText: queue.StringPtr(errorText),
	}); updateErr != nil {
		logger.Error("record job failure",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(updateErr))
	}
	logger.Warn("job failed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldErrorHint, errorText),
		logging.Error(err))

	if killed && deleteFiles {
		r.cleanupJobFiles(outcome)
	}
	r.notifier.NotifyJobFailed(storeCtx, notifications.JobEvent{
		JobID:     job.ID,
		URL:       job.SourceURL,
		WorkerID:  r.id,
		RunID:     runID,
		ContentID: outcome.ContentID,
		Error:     errorText,
	})

	r.mu.Lock()
	r.lastError = errorText
	r.mu.Unlock()
}

func (r *Runtime) beginJob(job *queue.Job) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobID = job.ID
	r.url = job.SourceURL
	r.contentID = ""
	r.stage = pipeline.StageMetadata
	r.state = string(queue.StatusDownloading)
	r.runID = uuid.NewString()
	r.startedAt = time.Now()
	r.killRequested = false
	r.deleteFiles = false
	return r.runID
}

func (r *Runtime) endJob() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastError != "" {
		// Informational only; the next claim proceeds regardless.
		r.state = StateFailed
	} else {
		r.state = StateIdle
	}
	r.jobID = 0
	r.url = ""
	r.contentID = ""
	r.stage = ""
	r.runID = ""
	r.startedAt = time.Time{}
	r.handle = nil
	r.killRequested = false
	r.deleteFiles = false
}

func (r *Runtime) attach(handle *procrun.Handle) {
	r.mu.Lock()
	paused := r.paused
	r.handle = handle
	r.mu.Unlock()
	if paused {
		_ = handle.Suspend()
	}
}

func (r *Runtime) observeProgress(progress pipeline.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stage = progress.Stage
	if progress.ContentID != "" {
		r.contentID = progress.ContentID
	}
	switch progress.Stage {
	case pipeline.StageMetadata, pipeline.StageDownload:
		r.state = string(queue.StatusDownloading)
	case pipeline.StageTranscribe, pipeline.StageIndex:
		r.state = string(queue.StatusTranscribing)
	}
}

func (r *Runtime) shouldTerminate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killRequested || r.stopping
}

// consumeKillFlags reads and clears the kill request atomically so fast
// repeated kills cannot leak into the next job's failure handling.
func (r *Runtime) consumeKillFlags() (killed, deleteFiles bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	killed = r.killRequested
	deleteFiles = r.deleteFiles
	r.killRequested = false
	r.deleteFiles = false
	return killed, deleteFiles
}

func (r *Runtime) isPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Runtime) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

func (r *Runtime) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return !r.shouldStop(ctx)
	}
}
