package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/errgroup"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/logging"
)

// Options tunes a Monitor.
type Options struct {
	// Name prefixes echoed lines in the log, e.g. "qemu" or "gdb".
	Name string
	// Echo, when set, is called for every captured line from the reader goroutines.
	Echo   func(lib.Line)
	Logger *slog.Logger
	Clock  clock.Clock
}

// Monitor drains a process's standard output and error concurrently into one
// Storage. Reading never waits for a consumer, so lines accumulate until polled.
type Monitor struct {
	storage *Storage
	cursor  *Cursor
	readers []io.Reader
	logger  *slog.Logger
	clock   clock.Clock
	opts    Options

	done chan struct{}
	err  error

	closeOnce sync.Once
}

// RunNewMonitor starts one reader goroutine per stream and returns once both
// are running. Either stream may be nil.
func RunNewMonitor(stdout, stderr io.Reader, opts Options) *Monitor {
	logger := logging.OrDiscard(opts.Logger)
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	storage := RunNewStorage()
	m := &Monitor{
		storage: storage,
		cursor:  storage.NewCursor(clk),
		readers: []io.Reader{stdout, stderr},
		logger:  logger,
		clock:   clk,
		opts:    opts,
		done:    make(chan struct{}),
	}

	var group errgroup.Group
	var started sync.WaitGroup
	for i, r := range m.readers {
		if r == nil {
			continue
		}
		r := r
		src := lib.Source(i)
		started.Add(1)
		group.Go(func() error {
			started.Done()
			return m.readLines(src, r)
		})
	}
	started.Wait()

	go func() {
		m.err = group.Wait()
		if m.err != nil {
			m.logger.Warn("Output reader failed", "name", opts.Name, "error", m.err)
		}
		storage.Close()
		close(m.done)
	}()

	return m
}

// readLines relays r line by line until end-of-stream, which is the normal way
// for a reader to finish.
func (m *Monitor) readLines(src lib.Source, r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		text, err := br.ReadString('\n')
		if len(text) > 0 {
			text = strings.TrimRight(text, "\r\n")
			line := m.storage.Append(src, text)
			if m.opts.Echo != nil {
				m.opts.Echo(line)
			}
			m.logger.Debug("output", "name", m.opts.Name, "source", src.String(), "line", text)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("reading %s: %w", src, err)
		}
	}
}

// Poll returns the next unread line, or ErrEmpty if none arrives within timeout.
// It is the only blocking call meant for test logic.
func (m *Monitor) Poll(timeout time.Duration) (lib.Line, error) {
	return m.cursor.Poll(timeout)
}

// Lines returns everything captured so far, for triage.
func (m *Monitor) Lines() []lib.Line {
	return m.storage.Lines()
}

// Subscribe follows the captured output from the beginning, independently of Poll.
func (m *Monitor) Subscribe(ctx context.Context, capacity int) <-chan lib.Line {
	return m.storage.Subscribe(ctx, capacity)
}

// Done is closed once both streams reached end-of-stream.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Err returns the first non-EOF read error. Only meaningful after Done.
func (m *Monitor) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Close waits up to drain for the readers to finish on their own, then closes
// any stream that implements io.Closer to unblock them.
func (m *Monitor) Close(drain time.Duration) error {
	if m == nil {
		return nil
	}
	var err error
	m.closeOnce.Do(func() {
		timer := m.clock.NewTimer(drain)
		defer timer.Stop()
		select {
		case <-m.done:
		case <-timer.C():
			m.logger.Warn("Output streams still open, closing them", "name", m.opts.Name)
			for _, r := range m.readers {
				if c, ok := r.(io.Closer); ok {
					err = errors.Join(err, c.Close())
				}
			}
			again := m.clock.NewTimer(drain)
			defer again.Stop()
			select {
			case <-m.done:
			case <-again.C():
				err = errors.Join(err, errors.New("output readers did not stop"))
			}
		}
		for _, r := range m.readers {
			if c, ok := r.(io.Closer); ok {
				// already at EOF; release the descriptor
				_ = c.Close()
			}
		}
		m.cursor.Close()
	})
	return err
}
