package matchmaking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/slogdiscard"
	"github.com/stretchr/testify/require"
)

var errTestChannelClosed = errors.New("test channel closed")

// recordingChannel collects delivered events. With failAfter > 0 it accepts
// that many events and fails every later Send.
type recordingChannel struct {
	mu        sync.Mutex
	events    []domain.Event
	closed    bool
	failAfter int
}

func newChannel() *recordingChannel {
	return &recordingChannel{}
}

func (c *recordingChannel) Send(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errTestChannelClosed
	}
	if c.failAfter > 0 && len(c.events) >= c.failAfter {
		return errors.New("write failed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *recordingChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingChannel) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *recordingChannel) Types() []domain.EventType {
	events := c.Events()
	out := make([]domain.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func (c *recordingChannel) Last() domain.Event {
	events := c.Events()
	if len(events) == 0 {
		return domain.Event{}
	}
	return events[len(events)-1]
}

func (c *recordingChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type pairChange struct {
	a, b   domain.ClientID
	reason domain.EndReason
}

type recordingObserver struct {
	mu      sync.Mutex
	added   []domain.ClientID
	removed []pairChange
	formed  []pairChange
	ended   []pairChange
	dropped int
}

func (o *recordingObserver) SessionAdded(id domain.ClientID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added = append(o.added, id)
}

func (o *recordingObserver) SessionRemoved(id domain.ClientID, reason domain.EndReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed = append(o.removed, pairChange{a: id, reason: reason})
}

func (o *recordingObserver) PairFormed(a, b domain.ClientID, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.formed = append(o.formed, pairChange{a: a, b: b})
}

func (o *recordingObserver) PairEnded(a, b domain.ClientID, reason domain.EndReason, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, pairChange{a: a, b: b, reason: reason})
}

func (o *recordingObserver) EventDropped(domain.ClientID, domain.EventType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func newTestMatchmaker(t *testing.T) (*Matchmaker, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	m := New(Config{
		Observer: obs,
		Log:      slogdiscard.NewDiscardLogger(),
	})
	return m, obs
}

// openAll opens a fresh channel for every id in order.
func openAll(m *Matchmaker, ids ...domain.ClientID) map[domain.ClientID]*recordingChannel {
	chans := make(map[domain.ClientID]*recordingChannel, len(ids))
	for _, id := range ids {
		ch := newChannel()
		chans[id] = ch
		m.Open(id, ch)
	}
	return chans
}

func requirePartners(t *testing.T, m *Matchmaker, a, b domain.ClientID) {
	t.Helper()
	sa, err := m.Session(a)
	require.NoError(t, err)
	sb, err := m.Session(b)
	require.NoError(t, err)
	require.Equal(t, b, sa.Partner)
	require.Equal(t, a, sb.Partner)
}

// requireInvariants checks partner symmetry and that exactly the unpaired
// sessions are queued.
func requireInvariants(t *testing.T, m *Matchmaker) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.sessions.IDs() {
		s, err := m.sessions.Get(id)
		require.NoError(t, err)
		if s.Paired() {
			p, err := m.sessions.Get(s.Partner)
			require.NoError(t, err, "partner of %s missing", id)
			require.Equal(t, id, p.Partner, "asymmetric partnership for %s", id)
			require.False(t, m.queue.Contains(id), "paired client %s is queued", id)
		} else {
			require.True(t, m.queue.Contains(id), "idle client %s is not queued", id)
		}
	}
	for _, id := range m.queue.Snapshot() {
		_, err := m.sessions.Get(id)
		require.NoError(t, err, "queued id %s has no session", id)
	}
}
