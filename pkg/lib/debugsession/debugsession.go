// Package debugsession attaches GDB to a halted simulator and runs a fault
// injection script against it.
package debugsession

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"code.cloudfoundry.org/clock"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/config"
	"github.com/espressif/esp-bist/pkg/lib/logging"
	"github.com/espressif/esp-bist/pkg/lib/output"
	"github.com/espressif/esp-bist/pkg/lib/process"
)

// Options configures Attach.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clock.Clock
}

// Session is a running debugger together with the script file it executes.
type Session struct {
	handle     *process.Handle
	monitor    *output.Monitor
	cfg        *config.Config
	logger     *slog.Logger
	scriptPath string

	stopOnce sync.Once
}

// ScriptPath returns where the script for workDir is written.
func ScriptPath(cfg *config.Config, workDir string) string {
	return filepath.Join(workDir, cfg.Debugger.ScriptName)
}

// Args returns the debugger command line for workDir running scriptPath.
func Args(cfg *config.Config, workDir, scriptPath string) []string {
	elf := cfg.Debugger.ELF
	if !filepath.IsAbs(elf) {
		elf = filepath.Join(workDir, elf)
	}
	args := []string{elf}
	args = append(args, cfg.Debugger.ExtraArgs...)
	return append(args, "--command="+scriptPath)
}

// Attach writes script into workDir and starts the debugger on it. The file
// is complete on disk before the debugger starts. If the debugger cannot be
// started the file is removed again.
func Attach(workDir, script string, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.WithComponent(logging.OrDiscard(opts.Logger), "debugger")

	path := ScriptPath(cfg, workDir)
	if err := writeScript(path, script); err != nil {
		return nil, fmt.Errorf("writing debugger script: %w", err)
	}
	logger.Debug("Debugger script written", "path", path)

	handle, err := process.Spawn(process.Spec{
		Command: cfg.DebuggerBinary(),
		Args:    Args(cfg, workDir, path),
		Dir:     workDir,
		Capture: true,
		Logger:  logger,
		Clock:   opts.Clock,
	})
	if err != nil {
		if rmErr := removeScript(path); rmErr != nil {
			logger.Warn("Removing debugger script", "error", rmErr)
		}
		return nil, err
	}

	return &Session{
		handle: handle,
		monitor: output.RunNewMonitor(handle.Stdout(), handle.Stderr(), output.Options{
			Name: "gdb",
			Echo: func(l lib.Line) {
				logger.Info("gdb", "stream", l.Source.String(), "line", l.Text)
			},
			Logger: logger,
			Clock:  opts.Clock,
		}),
		cfg:        cfg,
		logger:     logger,
		scriptPath: path,
	}, nil
}

// writeScript persists content at path through a synced temporary file and
// a rename, so path never holds a partial script.
func writeScript(path, content string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func removeScript(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &lib.TeardownError{Code: lib.CodeTeardownArtifact, Component: "debugger script", Cause: err}
	}
	return nil
}

// ScriptPath returns the path of the session's script file.
func (s *Session) ScriptPath() string { return s.scriptPath }

// Pid returns the debugger's process id.
func (s *Session) Pid() int { return s.handle.Pid() }

// Exited is closed when the debugger process has exited.
func (s *Session) Exited() <-chan struct{} { return s.handle.Exited() }

// Lines returns the debugger output captured so far.
func (s *Session) Lines() []lib.Line { return s.monitor.Lines() }

// Stop terminates the debugger, then removes the script file. The file is
// removed even when the debugger already exited or could not be stopped.
// Only the first call does any work.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var err error
	s.stopOnce.Do(func() {
		res, stopErr := s.handle.Stop(s.cfg.Timeouts.GracePeriod)
		if stopErr != nil {
			err = errors.Join(err, stopErr)
		} else if res.Forced {
			s.logger.Warn("Debugger needed a forced kill", "pid", s.handle.Pid())
		}
		if closeErr := s.monitor.Close(s.cfg.Timeouts.Drain); closeErr != nil {
			err = errors.Join(err, &lib.TeardownError{
				Code:      lib.CodeTeardownProcess,
				Component: "debugger output",
				Cause:     closeErr,
			})
		}
		err = errors.Join(err, removeScript(s.scriptPath))
	})
	return err
}
