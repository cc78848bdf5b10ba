// Package process spawns external programs (the simulator and the debugger)
// in their own process group and stops them with an escalating shutdown.
package process

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/espressif/esp-bist/pkg/lib"
)

// Spec describes a process to spawn.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	// Env is appended to the harness environment.
	Env []string
	// Capture creates stdout/stderr pipes readable through Handle.Stdout and Handle.Stderr.
	// Without it the child's output is discarded.
	Capture bool

	Logger *slog.Logger
	Clock  clock.Clock
}

// Handle is a spawned process.
type Handle struct {
	id      string
	command lib.Command
	cmd     *exec.Cmd
	pid     int
	logger  *slog.Logger
	clock   clock.Clock

	// read ends of the capture pipes, nil without Capture
	stdout *os.File
	stderr *os.File

	// closed by the waiter once the process is reaped
	exited chan struct{}

	// status fields
	mu       sync.RWMutex
	state    lib.ProcessState
	exitCode *int
	start    time.Time
	end      *time.Time

	// serialises Stop; swept is guarded by it
	stopMu sync.Mutex
	swept  bool
}

// ID returns the handle's generated identifier.
func (h *Handle) ID() string { return h.id }

// Pid returns the operating system process id, which is also its process group id.
func (h *Handle) Pid() int { return h.pid }

// Command returns the command line the handle was spawned with.
func (h *Handle) Command() lib.Command { return h.command }

// Stdout returns the read end of the captured standard output, or nil.
func (h *Handle) Stdout() *os.File { return h.stdout }

// Stderr returns the read end of the captured standard error, or nil.
func (h *Handle) Stderr() *os.File { return h.stderr }

// Exited is closed once the process has exited and been reaped.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

// Alive reports whether the process is still running.
func (h *Handle) Alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}
