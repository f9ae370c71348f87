package matchmaking

import "github.com/immxrtalbeast/axenix_roulette/internal/domain"

// EventChannel is a write-only delivery address for one client. Send must not
// block; transports buffer and report a full or closed buffer as an error.
type EventChannel interface {
	Send(event domain.Event) error
	Close() error
}

// Directory holds the currently open push channel of every connected client.
type Directory struct {
	channels map[domain.ClientID]EventChannel
}

func NewDirectory() *Directory {
	return &Directory{
		channels: make(map[domain.ClientID]EventChannel),
	}
}

// Set stores ch for id and returns the channel it replaced, if any.
func (d *Directory) Set(id domain.ClientID, ch EventChannel) EventChannel {
	prev := d.channels[id]
	d.channels[id] = ch
	return prev
}

func (d *Directory) Get(id domain.ClientID) (EventChannel, bool) {
	ch, ok := d.channels[id]
	return ch, ok
}

// Delete removes the association only while ch is still the current channel for id.
func (d *Directory) Delete(id domain.ClientID, ch EventChannel) bool {
	current, ok := d.channels[id]
	if !ok || current != ch {
		return false
	}
	delete(d.channels, id)
	return true
}

func (d *Directory) Len() int {
	return len(d.channels)
}

// Drain removes and returns every channel.
func (d *Directory) Drain() map[domain.ClientID]EventChannel {
	out := d.channels
	d.channels = make(map[domain.ClientID]EventChannel)
	return out
}
