package output

import (
	"fmt"
	"sync"
)

// Broadcaster fans a message out to every subscriber without ever blocking on
// a slow one: a subscriber that falls behind only keeps the latest message.
// It is used as a wakeup signal, so dropping stale messages loses nothing.
type Broadcaster[T any] struct {
	messageReceiver chan T
	mu              sync.Mutex
	subscribers     map[chan T]struct{}
	stopped         bool
	stopOnce        sync.Once
}

func RunNewBroadcaster[T any]() *Broadcaster[T] {
	broadcaster := &Broadcaster[T]{
		messageReceiver: make(chan T, 1),
		subscribers:     make(map[chan T]struct{}),
	}

	go broadcaster.start()

	return broadcaster
}

func (broadcaster *Broadcaster[T]) start() {
	for msg := range broadcaster.messageReceiver {
		// Sends never block, so the lock is held for the whole fan-out. This
		// keeps Unsubscribe from closing a channel that is being sent to.
		broadcaster.mu.Lock()
		for s := range broadcaster.subscribers {
			select {
			case s <- msg:
			default:
				// channel is full, drop the oldest message
				select {
				case <-s:
				default:
				}
				select {
				case s <- msg:
				default:
				}
			}
		}
		broadcaster.mu.Unlock()
	}

	broadcaster.mu.Lock()
	for subscriberSender := range broadcaster.subscribers {
		close(subscriberSender)
	}
	broadcaster.subscribers = make(map[chan T]struct{})
	broadcaster.stopped = true
	broadcaster.mu.Unlock()
}

// Stop closes every subscriber channel once pending messages are delivered.
// Publish must not be called after Stop.
func (broadcaster *Broadcaster[T]) Stop() {
	broadcaster.stopOnce.Do(func() {
		close(broadcaster.messageReceiver)
	})
}

func (broadcaster *Broadcaster[T]) Subscribe() (chan T, error) {
	// Use a buffer of 1 so we can drop stale notifications without blocking.
	ch := make(chan T, 1)
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return nil, fmt.Errorf("failed to subscribe: broadcaster is stopped")
	}
	broadcaster.subscribers[ch] = struct{}{}
	return ch, nil
}

func (broadcaster *Broadcaster[T]) Unsubscribe(subscriberSender chan T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if _, ok := broadcaster.subscribers[subscriberSender]; !ok {
		// already closed by Stop
		return
	}
	delete(broadcaster.subscribers, subscriberSender)
	close(subscriberSender)
}

func (broadcaster *Broadcaster[T]) Publish(msg T) {
	select {
	case broadcaster.messageReceiver <- msg:
	default:
		// channel is full, drop the pending message
		select {
		case <-broadcaster.messageReceiver:
		default:
		}
		broadcaster.messageReceiver <- msg
	}
}
