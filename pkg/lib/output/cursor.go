package output

import (
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/espressif/esp-bist/pkg/lib"
)

var (
	// ErrEmpty is returned by Poll when no line arrived within the timeout.
	ErrEmpty = errors.New("no output within timeout")
	// ErrClosed is returned by Poll once the stream ended and every line was consumed.
	ErrClosed = fmt.Errorf("%w: stream closed", ErrEmpty)
)

// Cursor is a single consumer's position in a Storage. Every line is
// delivered to a cursor exactly once, in insertion order.
// A Cursor must not be polled from several goroutines at once.
type Cursor struct {
	storage  *Storage
	prev     *node
	notifier chan struct{}
	clock    clock.Clock
}

// NewCursor returns a cursor positioned before the first line.
func (s *Storage) NewCursor(clk clock.Clock) *Cursor {
	if clk == nil {
		clk = clock.NewClock()
	}
	notifier, err := s.broadcaster.Subscribe()
	if err != nil {
		notifier = nil
	}
	return &Cursor{storage: s, prev: s.head, notifier: notifier, clock: clk}
}

// Poll returns the next unread line, waiting up to timeout for one to arrive.
func (c *Cursor) Poll(timeout time.Duration) (lib.Line, error) {
	if next := c.advance(); next != nil {
		return next.line, nil
	}
	if c.notifier == nil {
		return lib.Line{}, ErrClosed
	}

	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		if next := c.advance(); next != nil {
			return next.line, nil
		}
		if c.notifier == nil {
			return lib.Line{}, ErrClosed
		}
		select {
		case _, ok := <-c.notifier:
			if !ok {
				c.notifier = nil
			}
		case <-timer.C():
			return lib.Line{}, ErrEmpty
		}
	}
}

func (c *Cursor) advance() *node {
	next := c.prev.next.Load()
	if next != nil {
		c.prev = next
	}
	return next
}

// Close releases the cursor's wakeup subscription.
func (c *Cursor) Close() {
	if c.notifier != nil {
		c.storage.broadcaster.Unsubscribe(c.notifier)
		c.notifier = nil
	}
}
