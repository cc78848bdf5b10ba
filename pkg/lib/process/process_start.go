package process

import (
	"errors"
	"os"
	"os/exec"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/logging"
)

// Spawn starts a new process described by spec.
// Any failure to start is returned as *lib.SpawnError.
func Spawn(spec Spec) (*Handle, error) {
	command := lib.Command{Command: spec.Command, Args: append([]string(nil), spec.Args...)}
	if spec.Command == "" {
		return nil, &lib.SpawnError{Command: command, Cause: errors.New("command is required")}
	}

	logger := logging.OrDiscard(spec.Logger)
	clk := spec.Clock
	if clk == nil {
		clk = clock.NewClock()
	}

	id := lib.NewID()
	logger = logger.With("process", id, "command", spec.Command)

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = GetSysProcAttr()
	// cmd.Stdin is left nil, so it will use /dev/null

	h := &Handle{
		id:      id,
		command: command,
		cmd:     cmd,
		logger:  logger,
		clock:   clk,
		exited:  make(chan struct{}),
	}

	// Pipes are created by hand instead of StdoutPipe so that Wait never
	// closes them under a reader that is still draining.
	var childEnds []*os.File
	if spec.Capture {
		outR, outW, err := os.Pipe()
		if err != nil {
			return nil, &lib.SpawnError{Command: command, Cause: err}
		}
		errR, errW, err := os.Pipe()
		if err != nil {
			_ = outR.Close()
			_ = outW.Close()
			return nil, &lib.SpawnError{Command: command, Cause: err}
		}
		cmd.Stdout = outW
		cmd.Stderr = errW
		h.stdout = outR
		h.stderr = errR
		childEnds = []*os.File{outW, errW}
	}

	logger.Info("Starting process", "args", spec.Args, "dir", spec.Dir)
	err := cmd.Start()
	// The child holds its own copies now; the stream reaches EOF once it exits.
	for _, f := range childEnds {
		_ = f.Close()
	}
	if err != nil {
		logger.Error("Failed to start process", "error", err)
		if h.stdout != nil {
			_ = h.stdout.Close()
			_ = h.stderr.Close()
		}
		return nil, &lib.SpawnError{Command: command, Cause: err}
	}

	h.pid = cmd.Process.Pid
	h.state = lib.ProcessStateRunning
	h.start = time.Now()

	go h.wait()

	return h, nil
}

// wait reaps the process and records its final status.
func (h *Handle) wait() {
	err := h.cmd.Wait()
	if err != nil {
		h.logger.Info("Process finished with error", "pid", h.pid, "error", err)
	} else {
		h.logger.Info("Process finished without error", "pid", h.pid)
	}

	h.mu.Lock()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			h.exitCode = &code
		}
		// Non-exit error, leave exitCode nil
	} else {
		code := 0
		h.exitCode = &code
	}
	now := time.Now()
	h.end = &now
	h.state = lib.ProcessStateStopped
	h.mu.Unlock()

	close(h.exited)
}
