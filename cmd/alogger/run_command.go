package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"alogger/internal/deps"
	"alogger/internal/logging"
	"alogger/internal/notifications"
	"alogger/internal/pipeline"
	"alogger/internal/queue"
	"alogger/internal/worker"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jobID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker pool until interrupted",
		Long: "Run launches the configured number of workers against the job\n" +
			"queue. With --job it claims the given queued job, processes it on\n" +
			"the calling goroutine, and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			// One running instance per database. A stale lock from a
			// crashed process is released by the OS.
			lockPath := filepath.Join(cfg.Paths.LogDir, "alogger.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire instance lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another alogger instance is already running (lock %s)", lockPath)
			}
			defer func() { _ = lock.Unlock() }()

			store, err := queue.Open(cfg.Paths.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			notifier := notifications.NewService(cfg, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if jobID > 0 {
				stages, err := pipeline.New(cfg, store, logger)
				if err != nil {
					return err
				}
				runtime := worker.NewRuntime(1, cfg, store, stages, notifier, logger)
				return runtime.ProcessJobByID(runCtx, jobID)
			}

			pool, err := worker.NewPool(cfg, store, notifier, logger)
			if err != nil {
				return err
			}
			pool.Start(runCtx)
			logger.Info("workers running, press Ctrl-C to stop")

			<-runCtx.Done()
			logger.Info("shutting down workers")
			return pool.Stop()
		},
	}

	cmd.Flags().Int64Var(&jobID, "job", 0, "Process a single queued job by id, then exit")
	return cmd
}
