package procrun

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Handle exposes control over a running process. All signals target the
// process group so tool-spawned children are covered too.
type Handle struct {
	mu        sync.Mutex
	process   *os.Process
	suspended bool
}

func newHandle(process *os.Process) *Handle {
	return &Handle{process: process}
}

// PID returns the process id, or 0 when the process has been released.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.process == nil {
		return 0
	}
	return h.process.Pid
}

// Suspend stops the process group. Suspending an already suspended
// process is a no-op.
func (h *Handle) Suspend() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.process == nil || h.suspended {
		return nil
	}
	if err := h.signal(unix.SIGSTOP); err != nil {
		return err
	}
	h.suspended = true
	return nil
}

// Resume continues a suspended process group.
func (h *Handle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.process == nil || !h.suspended {
		return nil
	}
	if err := h.signal(unix.SIGCONT); err != nil {
		return err
	}
	h.suspended = false
	return nil
}

// Kill forcibly terminates the process group. A suspended group is
// resumed first so the kill is delivered promptly.
func (h *Handle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.process == nil {
		return nil
	}
	if h.suspended {
		_ = h.signal(unix.SIGCONT)
		h.suspended = false
	}
	return h.signal(unix.SIGKILL)
}

// release detaches the handle once the process has exited, turning
// further control calls into no-ops.
func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.process = nil
	h.suspended = false
}

func (h *Handle) signal(sig unix.Signal) error {
	err := unix.Kill(-h.process.Pid, sig)
	if err == unix.ESRCH {
		return nil
	}
	return err
}
