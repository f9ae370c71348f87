package http

import (
	"io"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

// sseChannel is the server-sent events push channel used together with the
// request/response signal endpoint.
type sseChannel struct {
	*eventQueue
}

func newSSEChannel(buffer int) *sseChannel {
	return &sseChannel{eventQueue: newEventQueue(buffer)}
}

func encodeEvent(w io.Writer, ev domain.Event) error {
	return sse.Encode(w, sse.Event{
		Event: string(ev.Type),
		Data:  ev,
	})
}

// stream writes events to w until the channel is closed or done fires.
// flush is called after every write; heartbeat comments go out every period.
func (c *sseChannel) stream(w io.Writer, flush func(), done <-chan struct{}, heartbeat time.Duration) error {
	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev := <-c.events:
			if err := encodeEvent(w, ev); err != nil {
				return err
			}
			flush()
		case <-tick:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return err
			}
			flush()
		case <-c.done:
			for _, ev := range c.pending() {
				if err := encodeEvent(w, ev); err != nil {
					return err
				}
			}
			flush()
			return nil
		case <-done:
			return nil
		}
	}
}
