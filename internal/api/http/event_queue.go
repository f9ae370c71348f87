package http

import (
	"errors"
	"sync"

	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

var (
	errChannelClosed = errors.New("event channel closed")
	errChannelFull   = errors.New("event channel buffer full")
)

// eventQueue is the buffered outbound side shared by the push transports.
// Send never blocks; a full buffer is reported as a failed write.
type eventQueue struct {
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

func newEventQueue(size int) *eventQueue {
	if size <= 0 {
		size = 1
	}
	return &eventQueue{
		events: make(chan domain.Event, size),
		done:   make(chan struct{}),
	}
}

func (q *eventQueue) Send(ev domain.Event) error {
	select {
	case <-q.done:
		return errChannelClosed
	default:
	}

	select {
	case q.events <- ev:
		return nil
	default:
		return errChannelFull
	}
}

func (q *eventQueue) Close() error {
	q.once.Do(func() {
		close(q.done)
	})
	return nil
}

func (q *eventQueue) closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// pending returns the events still buffered, without blocking.
func (q *eventQueue) pending() []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-q.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
