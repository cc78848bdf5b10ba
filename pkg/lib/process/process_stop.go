package process

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/espressif/esp-bist/pkg/lib"
)

// StopResult returns process info and its final status after Stop.
type StopResult struct {
	Command lib.Command
	Status  lib.ProcessStatus
	// Forced is set when the process ignored SIGTERM for the whole grace period.
	Forced bool
	// AlreadyStopped is set when the process had exited before Stop was called.
	AlreadyStopped bool
}

// Stop asks the process group to terminate, waits up to grace for it to exit and
// then kills it. It only returns once the process is confirmed dead.
// Stop is safe to call repeatedly and on a process that exited by itself.
func (h *Handle) Stop(grace time.Duration) (*StopResult, error) {
	if h == nil {
		return &StopResult{AlreadyStopped: true}, nil
	}
	h.stopMu.Lock()
	defer h.stopMu.Unlock()

	res := &StopResult{Command: h.command}
	if !h.Alive() {
		h.sweep()
		res.AlreadyStopped = true
		res.Status = h.Status()
		return res, nil
	}

	h.logger.Info("Terminating process", "pid", h.pid, "grace", grace)
	if err := signalGroup(h.pid, unix.SIGTERM); err != nil {
		return nil, &lib.TeardownError{Code: lib.CodeTeardownProcess, Component: h.command.Command, Cause: err}
	}

	timer := h.clock.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.exited:
	case <-timer.C():
		h.logger.Warn("Process ignored SIGTERM, killing", "pid", h.pid)
		res.Forced = true
		if err := signalGroup(h.pid, unix.SIGKILL); err != nil {
			return nil, &lib.TeardownError{Code: lib.CodeTeardownProcess, Component: h.command.Command, Forced: true, Cause: err}
		}
		// SIGKILL cannot be caught, the waiter reaps it promptly.
		<-h.exited
	}

	h.sweep()
	res.Status = h.Status()
	return res, nil
}

// sweep kills whatever is left of the process group once the leader is gone.
// It runs at most once per handle.
func (h *Handle) sweep() {
	if h.swept {
		return
	}
	h.swept = true
	if pidInUse(h.pid) {
		// The leader is reaped, so this pid belongs to someone else now.
		h.logger.Debug("Leader pid reused, skipping group sweep", "pgid", h.pid)
		return
	}
	if n := killGroupStragglers(h.pid, unix.SIGKILL); n > 0 {
		h.logger.Warn("Killed leftover group members", "pgid", h.pid, "count", n)
	}
}

// signalGroup sends sig to the process group led by pgid. A group that no
// longer exists is not an error.
func signalGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
