// Package simulator runs the firmware image under QEMU and captures its console.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/config"
	"github.com/espressif/esp-bist/pkg/lib/logging"
	"github.com/espressif/esp-bist/pkg/lib/output"
	"github.com/espressif/esp-bist/pkg/lib/process"
)

// Options configures Start.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clock.Clock
	// Echo is called with every console line as it is read.
	Echo func(lib.Line)
}

// Session is a running simulator with its console captured.
type Session struct {
	handle  *process.Handle
	monitor *output.Monitor
	cfg     *config.Config
	logger  *slog.Logger
	workDir string
	debug   bool

	stopOnce sync.Once
}

// Args returns the simulator command line for the test directory workDir.
// In debug mode the CPU is held at reset and the gdb stub listens on the
// configured port.
func Args(cfg *config.Config, workDir string, debug bool) []string {
	var args []string
	if debug {
		args = append(args, "-gdb", "tcp::"+strconv.Itoa(cfg.Debugger.Port), "-S")
	}
	args = append(args, cfg.Simulator.ExtraArgs...)
	args = append(args,
		"-icount", strconv.Itoa(cfg.Simulator.ICount),
		"-machine", cfg.Simulator.Machine,
		"-drive", fmt.Sprintf("file=%s,if=mtd,format=raw", imagePath(cfg, workDir)),
	)
	return args
}

func imagePath(cfg *config.Config, workDir string) string {
	if filepath.IsAbs(cfg.Simulator.Image) {
		return cfg.Simulator.Image
	}
	return filepath.Join(workDir, cfg.Simulator.Image)
}

// Start launches the simulator for workDir. The console is being read by the
// time Start returns. In debug mode with wait_listen set, Start also waits
// until the gdb stub accepts connections, bounded by ctx.
func Start(ctx context.Context, workDir string, debug bool, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.WithComponent(logging.OrDiscard(opts.Logger), "simulator")

	args := Args(cfg, workDir, debug)
	if _, err := os.Stat(imagePath(cfg, workDir)); err != nil {
		return nil, &lib.SpawnError{
			Command: lib.Command{Command: cfg.Simulator.Binary, Args: args},
			Cause:   fmt.Errorf("firmware image: %w", err),
		}
	}

	handle, err := process.Spawn(process.Spec{
		Command: cfg.Simulator.Binary,
		Args:    args,
		Dir:     workDir,
		Capture: true,
		Logger:  logger,
		Clock:   opts.Clock,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		handle: handle,
		monitor: output.RunNewMonitor(handle.Stdout(), handle.Stderr(), output.Options{
			Name:   "qemu",
			Echo:   opts.Echo,
			Logger: logger,
			Clock:  opts.Clock,
		}),
		cfg:     cfg,
		logger:  logger,
		workDir: workDir,
		debug:   debug,
	}

	if debug && cfg.Simulator.WaitListen {
		if err := waitListening(ctx, handle, cfg.Debugger.Port); err != nil {
			if stopErr := s.Stop(); stopErr != nil {
				logger.Warn("Teardown after failed start", "error", stopErr)
			}
			return nil, err
		}
		logger.Info("Debug stub listening", "port", cfg.Debugger.Port)
	}

	return s, nil
}

// Poll returns the next console line, waiting up to timeout.
// It returns output.ErrEmpty on timeout and output.ErrClosed once the
// simulator is gone and every line was consumed.
func (s *Session) Poll(timeout time.Duration) (lib.Line, error) {
	return s.monitor.Poll(timeout)
}

// Lines returns everything captured so far.
func (s *Session) Lines() []lib.Line {
	return s.monitor.Lines()
}

// Subscribe streams the console from its first line until ctx is done or the
// simulator exits.
func (s *Session) Subscribe(ctx context.Context, capacity int) <-chan lib.Line {
	return s.monitor.Subscribe(ctx, capacity)
}

// Pid returns the simulator's process id.
func (s *Session) Pid() int { return s.handle.Pid() }

// Debug reports whether the simulator was started halted with its gdb stub open.
func (s *Session) Debug() bool { return s.debug }

// WorkDir returns the test directory the simulator runs in.
func (s *Session) WorkDir() string { return s.workDir }

// Exited is closed when the simulator process has exited.
func (s *Session) Exited() <-chan struct{} { return s.handle.Exited() }

// Status returns the simulator's process status.
func (s *Session) Status() lib.ProcessStatus { return s.handle.Status() }

// Stop terminates the simulator and releases the console. Only the first call
// does any work; later calls return nil. A forced kill is logged, not returned.
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
			s.logger.Warn("Simulator needed a forced kill", "pid", s.handle.Pid())
		}
		if closeErr := s.monitor.Close(s.cfg.Timeouts.Drain); closeErr != nil {
			err = errors.Join(err, &lib.TeardownError{
				Code:      lib.CodeTeardownProcess,
				Component: "simulator console",
				Cause:     closeErr,
			})
		}
	})
	return err
}
