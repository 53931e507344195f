package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"alogger/internal/config"
	"alogger/internal/logging"
	"alogger/internal/notifications"
	"alogger/internal/pipeline"
	"alogger/internal/queue"
)

// Pool runs a fixed set of workers against one shared store.
type Pool struct {
	workers []*Runtime
	logger  *slog.Logger
}

// NewPool constructs the configured number of workers sharing one
// pipeline.
func NewPool(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) (*Pool, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	stages, err := pipeline.New(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	count := cfg.Workers.Count
	if count <= 0 {
		count = 1
	}
	workers := make([]*Runtime, 0, count)
	for i := 1; i <= count; i++ {
		workers = append(workers, NewRuntime(i, cfg, store, stages, notifier, logger))
	}
	return &Pool{
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "worker-pool"),
	}, nil
}

// Start launches every worker's claim loop.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting workers", logging.Int("count", len(p.workers)))
	for _, worker := range p.workers {
		worker.Start(ctx)
	}
}

// Stop shuts every worker down, joining each with its bounded timeout.
func (p *Pool) Stop() error {
	var firstErr error
	for _, worker := range p.workers {
		if err := worker.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("worker %d: %w", worker.id, err)
		}
	}
	return firstErr
}

// Snapshots returns a point-in-time view of every worker.
func (p *Pool) Snapshots() []Snapshot {
	snapshots := make([]Snapshot, 0, len(p.workers))
	for _, worker := range p.workers {
		snapshots = append(snapshots, worker.Snapshot())
	}
	return snapshots
}

// TogglePause flips the pause flag on one worker.
func (p *Pool) TogglePause(workerID int) (string, error) {
	worker, err := p.worker(workerID)
	if err != nil {
		return "", err
	}
	return worker.TogglePause(), nil
}

// KillActive kills one worker's active job.
func (p *Pool) KillActive(workerID int, deleteFiles bool) (bool, error) {
	worker, err := p.worker(workerID)
	if err != nil {
		return false, err
	}
	return worker.KillActive(deleteFiles), nil
}

func (p *Pool) worker(workerID int) (*Runtime, error) {
	for _, worker := range p.workers {
		if worker.id == workerID {
			return worker, nil
		}
	}
	return nil, fmt.Errorf("unknown worker %d", workerID)
}
