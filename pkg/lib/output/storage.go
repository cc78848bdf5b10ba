// Package output captures the standard output and error of a process into a
// single ordered stream of lines that test logic can poll at its own pace.
package output

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/espressif/esp-bist/pkg/lib"
)

// node represents an element in the singly linked list.
// The list uses a sentinel head node so readers never need a lock: they only
// follow next pointers, which are published atomically.
type node struct {
	line lib.Line
	next atomic.Pointer[node]
}

// Storage is an unbounded, append-only, insertion-ordered list of lines.
// Appends from several producers are serialised; any number of cursors and
// subscriptions can read concurrently without locks.
type Storage struct {
	head *node // sentinel head, immutable

	mu     sync.Mutex // guards tail, seq and closed
	tail   *node
	seq    uint64
	closed bool

	broadcaster *Broadcaster[struct{}]
}

// RunNewStorage creates a new, empty Storage.
func RunNewStorage() *Storage {
	sentinel := &node{}
	return &Storage{
		head:        sentinel,
		tail:        sentinel,
		broadcaster: RunNewBroadcaster[struct{}](),
	}
}

// Append adds a line from src to the end of the list and returns it.
// Appends after Close are dropped.
func (s *Storage) Append(src lib.Source, text string) lib.Line {
	if s == nil {
		return lib.Line{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lib.Line{}
	}
	s.seq++
	n := &node{line: lib.Line{Seq: s.seq, Source: src, Text: text, Time: time.Now()}}
	s.tail.next.Store(n)
	s.tail = n
	s.broadcaster.Publish(struct{}{})
	return n.line
}

// Close marks the end of the stream. Readers drain what is stored and then see the end.
func (s *Storage) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.broadcaster.Stop()
}

// Closed reports whether Close was called.
func (s *Storage) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the number of stored lines.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.seq)
}

// ForEach iterates over all stored lines in insertion order.
// If iter returns false, iteration stops early.
func (s *Storage) ForEach(iter func(lib.Line) bool) {
	if s == nil || iter == nil {
		return
	}
	cur := s.head.next.Load() // skip sentinel
	for cur != nil {
		if !iter(cur.line) {
			return
		}
		cur = cur.next.Load()
	}
}

// Lines returns a snapshot of every stored line.
func (s *Storage) Lines() []lib.Line {
	var out []lib.Line
	s.ForEach(func(l lib.Line) bool {
		out = append(out, l)
		return true
	})
	return out
}

// Subscribe streams every line from the beginning and then follows new ones.
// The channel is closed when the storage is closed and drained, or when ctx is done.
func (s *Storage) Subscribe(ctx context.Context, capacity int) <-chan lib.Line {
	ch := make(chan lib.Line, capacity)
	notifier, err := s.broadcaster.Subscribe()
	if err != nil {
		// already closed, replay only
		notifier = nil
	}
	go s.follow(ctx, notifier, ch)
	return ch
}

func (s *Storage) follow(ctx context.Context, notifier chan struct{}, ch chan lib.Line) {
	defer close(ch)
	if notifier != nil {
		defer s.broadcaster.Unsubscribe(notifier)
	}
	prev := s.head

	for {
		current := prev.next.Load()
		if current == nil {
			if notifier == nil {
				return
			}
			select {
			case _, ok := <-notifier:
				if !ok {
					// closed: one more pass picks up anything appended before Close
					notifier = nil
				}
				continue
			case <-ctx.Done():
				return
			}
		}
		prev = current

		select {
		case ch <- current.line:
		case <-ctx.Done():
			return
		}
	}
}
