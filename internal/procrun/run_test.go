package procrun_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"alogger/internal/procrun"
)

func TestRunCapturesOutput(t *testing.T) {
	result, err := procrun.Run(context.Background(), procrun.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo out-line; echo err-line >&2"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stdout != "out-line\n" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
	if result.Stderr != "err-line\n" {
		t.Fatalf("unexpected stderr %q", result.Stderr)
	}
	if result.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d", result.ExitCode)
	}
}

func TestRunStreamsStdoutLines(t *testing.T) {
	var lines []string
	_, err := procrun.Run(context.Background(), procrun.Command{
		Binary:       "/bin/sh",
		Args:         []string{"-c", "echo one; echo two"},
		OnStdoutLine: func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected streamed lines %v", lines)
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	result, err := procrun.Run(context.Background(), procrun.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo boom >&2; exit 3"},
	})
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}
	var processErr *procrun.ProcessError
	if !errors.As(err, &processErr) {
		t.Fatalf("expected ProcessError, got %T: %v", err, err)
	}
	if processErr.ExitCode != 3 || result.ExitCode != 3 {
		t.Fatalf("unexpected exit code %d / %d", processErr.ExitCode, result.ExitCode)
	}
	if !strings.Contains(processErr.Output, "boom") {
		t.Fatalf("expected stderr tail in error, got %q", processErr.Output)
	}
}

func TestRunTerminatesOnPredicate(t *testing.T) {
	var terminate atomic.Bool
	go func() {
		time.Sleep(300 * time.Millisecond)
		terminate.Store(true)
	}()

	start := time.Now()
	_, err := procrun.Run(context.Background(), procrun.Command{
		Binary:          "/bin/sh",
		Args:            []string{"-c", "sleep 30"},
		ShouldTerminate: terminate.Load,
	})
	if !errors.Is(err, procrun.ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill took too long: %v", elapsed)
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := procrun.Run(ctx, procrun.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "sleep 30"},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestHandleSuspendResume(t *testing.T) {
	handleCh := make(chan *procrun.Handle, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, err := procrun.Run(context.Background(), procrun.Command{
			Binary:    "/bin/sh",
			Args:      []string{"-c", "sleep 0.5"},
			OnProcess: func(h *procrun.Handle) { handleCh <- h },
		})
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
	}()

	handle := <-handleCh
	if handle.PID() == 0 {
		t.Fatal("expected a live pid")
	}
	if err := handle.Suspend(); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	if err := handle.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("process did not finish after resume")
	}

	// Released handles are inert.
	if err := handle.Kill(); err != nil {
		t.Fatalf("Kill after exit should be a no-op, got %v", err)
	}
}
