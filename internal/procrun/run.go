package procrun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrTerminated reports that the process was killed because the caller's
// termination predicate fired.
var ErrTerminated = errors.New("process terminated by request")

const pollInterval = 100 * time.Millisecond

// Control bundles the caller-supplied process observation hooks shared
// by the tool clients.
type Control struct {
	OnProcess       func(*Handle)
	ShouldTerminate func() bool
}

// Command describes one external tool invocation.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string

	// OnProcess receives a control handle once the process has started.
	OnProcess func(*Handle)
	// ShouldTerminate is polled while the process runs; returning true
	// kills the process group and fails the run with ErrTerminated.
	ShouldTerminate func() bool
	// OnStdoutLine streams stdout lines as they arrive. Captured output
	// is returned regardless.
	OnStdoutLine func(string)
}

// Result carries the captured output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ProcessError reports a non-zero exit, preserving the tail of stderr
// for diagnostics.
type ProcessError struct {
	Binary   string
	ExitCode int
	Output   string
}

func (e *ProcessError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.ExitCode, e.Output)
}

// Run executes the command and blocks until it exits, the context is
// cancelled, or ShouldTerminate fires. Output captured before a kill is
// still returned alongside the error.
func Run(ctx context.Context, command Command) (Result, error) {
	if strings.TrimSpace(command.Binary) == "" {
		return Result{}, errors.New("binary required")
	}

	cmd := exec.Command(command.Binary, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	if command.Env != nil {
		cmd.Env = command.Env
	}
	// Own process group so suspend and kill reach tool-spawned children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", command.Binary, err)
	}

	handle := newHandle(cmd.Process)
	defer handle.release()
	if command.OnProcess != nil {
		command.OnProcess(handle)
	}

	var (
		wg     sync.WaitGroup
		outBuf strings.Builder
		errBuf strings.Builder
	)
	wg.Add(2)
	go drain(&wg, stdout, &outBuf, command.OnStdoutLine)
	go drain(&wg, stderr, &errBuf, nil)

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var waitErr error
	var killReason error
poll:
	for {
		select {
		case waitErr = <-done:
			break poll
		case <-ctx.Done():
			killReason = ctx.Err()
			_ = handle.Kill()
			waitErr = <-done
			break poll
		case <-ticker.C:
			if command.ShouldTerminate != nil && command.ShouldTerminate() {
				killReason = ErrTerminated
				_ = handle.Kill()
				waitErr = <-done
				break poll
			}
		}
	}

	result := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if killReason != nil {
		result.ExitCode = exitCode(waitErr)
		return result, killReason
	}
	if waitErr != nil {
		result.ExitCode = exitCode(waitErr)
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return result, &ProcessError{
				Binary:   command.Binary,
				ExitCode: result.ExitCode,
				Output:   outputTail(result.Stderr, result.Stdout),
			}
		}
		return result, fmt.Errorf("wait %s: %w", command.Binary, waitErr)
	}
	return result, nil
}

func drain(wg *sync.WaitGroup, r io.Reader, buf *strings.Builder, forward func(string)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if forward != nil {
			forward(line)
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// outputTail picks the most useful diagnostic text from a failed run,
// preferring stderr, trimmed to the last few lines.
func outputTail(stderr, stdout string) string {
	text := strings.TrimSpace(stderr)
	if text == "" {
		text = strings.TrimSpace(stdout)
	}
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	const keep = 5
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
