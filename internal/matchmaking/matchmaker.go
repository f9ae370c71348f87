package matchmaking

import (
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// Observer is notified of session and pairing changes and dropped events. It
// is called while the matchmaker holds its lock and must return without
// blocking or calling back into the matchmaker.
type Observer interface {
	SessionAdded(id domain.ClientID)
	SessionRemoved(id domain.ClientID, reason domain.EndReason)
	PairFormed(a, b domain.ClientID, at time.Time)
	PairEnded(a, b domain.ClientID, reason domain.EndReason, at time.Time)
	EventDropped(to domain.ClientID, eventType domain.EventType)
}

type nopObserver struct{}

func (nopObserver) SessionAdded(domain.ClientID) {}

func (nopObserver) SessionRemoved(domain.ClientID, domain.EndReason) {}

func (nopObserver) PairFormed(domain.ClientID, domain.ClientID, time.Time) {}

func (nopObserver) PairEnded(domain.ClientID, domain.ClientID, domain.EndReason, time.Time) {}

func (nopObserver) EventDropped(domain.ClientID, domain.EventType) {}

type Config struct {
	// ICEServers are advertised to every client in its connected event.
	ICEServers []webrtc.ICEServer
	Observer   Observer
	Log        *slog.Logger
	Now        func() time.Time
}

// Stats is a point-in-time view of the matchmaker.
type Stats struct {
	Sessions int `json:"sessions"`
	Waiting  int `json:"waiting"`
	Paired   int `json:"paired"`
	Channels int `json:"channels"`
}

type failedSend struct {
	id domain.ClientID
	ch EventChannel
}

// Matchmaker owns the session registry, the waiting queue and the channel
// directory. Every exported method runs as one critical section, so pairing
// decisions and partnership changes are totally ordered.
type Matchmaker struct {
	iceServers []webrtc.ICEServer
	observer   Observer
	log        *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions *Registry
	queue    *Queue
	channels *Directory
	readySeq uint64
	failed   []failedSend
}

func New(cfg Config) *Matchmaker {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Matchmaker{
		iceServers: cfg.ICEServers,
		observer:   cfg.Observer,
		log:        cfg.Log,
		now:        cfg.Now,
		sessions:   NewRegistry(),
		queue:      NewQueue(),
		channels:   NewDirectory(),
	}
}

// Open registers ch as the push channel for id, replacing and closing any
// previous one. The first open of an id also registers and enqueues it.
func (m *Matchmaker) Open(id domain.ClientID, ch EventChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reapFailed()

	if prev := m.channels.Set(id, ch); prev != nil && prev != ch {
		if err := prev.Close(); err != nil {
			m.log.Debug("closing replaced channel", slog.String("client_id", id.String()), sl.Err(err))
		}
	}
	m.send(id, domain.ConnectedEvent(id, m.iceServers))

	if _, created := m.sessions.Register(id); created {
		m.observer.SessionAdded(id)
		m.log.Info("client registered", slog.String("client_id", id.String()))
		m.queue.Enqueue(id)
		m.pairAll()
	}
}

// Close is the transport's close callback. It is a no-op when ch has already
// been replaced by a newer channel for id. The result reports whether the
// session was removed.
func (m *Matchmaker) Close(id domain.ClientID, ch EventChannel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reapFailed()

	if !m.channels.Delete(id, ch) {
		return false
	}
	return m.remove(id, domain.EndReasonDisconnect)
}

// Join registers id without a push channel, for transports that declare intent
// separately from opening the channel. Joining twice is a no-op.
func (m *Matchmaker) Join(id domain.ClientID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reapFailed()

	m.join(id)
}

// Leave removes the session of id. The push channel, if any, stays registered
// so the client can join again.
func (m *Matchmaker) Leave(id domain.ClientID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reapFailed()

	return m.remove(id, domain.EndReasonLeave)
}

// Session returns a copy of the session state of id.
func (m *Matchmaker) Session(id domain.ClientID) (domain.ClientSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.sessions.Get(id)
	if err != nil {
		return domain.ClientSession{}, err
	}
	return *s, nil
}

// Waiting returns the waiting queue, oldest first.
func (m *Matchmaker) Waiting() []domain.ClientID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.queue.Snapshot()
}

func (m *Matchmaker) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Sessions: m.sessions.Len(),
		Waiting:  m.queue.Len(),
		Paired:   m.sessions.Len() - m.queue.Len(),
		Channels: m.channels.Len(),
	}
}

// Shutdown closes every push channel and forgets all sessions.
func (m *Matchmaker) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	for _, id := range m.sessions.IDs() {
		s, _ := m.sessions.Delete(id)
		if s.Paired() && s.ID < s.Partner {
			m.observer.PairEnded(s.ID, s.Partner, domain.EndReasonShutdown, at)
		}
		m.observer.SessionRemoved(id, domain.EndReasonShutdown)
	}
	for id, ch := range m.channels.Drain() {
		if err := ch.Close(); err != nil {
			m.log.Debug("closing channel on shutdown", slog.String("client_id", id.String()), sl.Err(err))
		}
	}
	m.queue = NewQueue()
	m.failed = nil
}

func (m *Matchmaker) join(id domain.ClientID) {
	if _, created := m.sessions.Register(id); !created {
		return
	}
	m.observer.SessionAdded(id)
	m.log.Info("client joined", slog.String("client_id", id.String()))
	m.queue.Enqueue(id)
	m.pairAll()
}

// remove deletes the session of id, frees its partner and runs a pairing pass.
func (m *Matchmaker) remove(id domain.ClientID, reason domain.EndReason) bool {
	s, ok := m.sessions.Delete(id)
	if !ok {
		return false
	}
	m.queue.Remove(id)
	m.observer.SessionRemoved(id, reason)
	m.log.Info("client removed", slog.String("client_id", id.String()), slog.String("reason", string(reason)))

	if s.Paired() {
		if p, err := m.sessions.Get(s.Partner); err == nil && p.Partner == id {
			m.release(p, id, reason)
		}
	}
	m.pairAll()
	return true
}

// release frees p from its partnership with former and sends it back to the queue.
func (m *Matchmaker) release(p *domain.ClientSession, former domain.ClientID, reason domain.EndReason) {
	p.Unpair()
	m.observer.PairEnded(former, p.ID, reason, m.now())
	m.send(p.ID, domain.PartnerDisconnectedEvent(former))
	m.queue.Enqueue(p.ID)
}

// pairAll pairs waiting clients two at a time in arrival order until fewer
// than two remain.
func (m *Matchmaker) pairAll() {
	for m.queue.Len() >= 2 {
		id1, _ := m.queue.Pop()
		s1, ok := m.waitingSession(id1)
		if !ok {
			continue
		}
		id2, _ := m.queue.Pop()
		s2, ok := m.waitingSession(id2)
		if !ok {
			m.queue.PushFront(id1)
			continue
		}
		m.pair(s1, s2)
	}
}

func (m *Matchmaker) waitingSession(id domain.ClientID) (*domain.ClientSession, bool) {
	s, err := m.sessions.Get(id)
	if err != nil {
		m.log.Warn("discarding queued id without session", slog.String("client_id", id.String()))
		return nil, false
	}
	if s.Paired() {
		m.log.Warn("discarding queued id that is already paired", slog.String("client_id", id.String()))
		return nil, false
	}
	return s, true
}

func (m *Matchmaker) pair(a, b *domain.ClientSession) {
	at := m.now().UTC()
	a.PairWith(b.ID, at)
	b.PairWith(a.ID, at)
	m.observer.PairFormed(a.ID, b.ID, at)
	m.log.Info("clients paired", slog.String("client_a", a.ID.String()), slog.String("client_b", b.ID.String()))

	m.send(a.ID, domain.PartnerFoundEvent(b.ID))
	m.send(b.ID, domain.PartnerFoundEvent(a.ID))
}

// send delivers ev to the current channel of id. Delivery failures are
// queued and handled as implicit closes once the current operation is done.
func (m *Matchmaker) send(id domain.ClientID, ev domain.Event) bool {
	ch, ok := m.channels.Get(id)
	if !ok {
		m.observer.EventDropped(id, ev.Type)
		m.log.Debug("event dropped",
			slog.String("client_id", id.String()),
			slog.String("type", string(ev.Type)),
			sl.Err(ErrChannelUnavailable),
		)
		return false
	}
	if err := ch.Send(ev); err != nil {
		m.observer.EventDropped(id, ev.Type)
		m.log.Warn("event delivery failed",
			slog.String("client_id", id.String()),
			slog.String("type", string(ev.Type)),
			sl.Err(err),
		)
		m.failed = append(m.failed, failedSend{id: id, ch: ch})
		return false
	}
	return true
}

// reapFailed closes channels whose writes failed. Closing may release
// partners and trigger further sends, so it loops until nothing is left.
func (m *Matchmaker) reapFailed() {
	for len(m.failed) > 0 {
		f := m.failed[0]
		m.failed = m.failed[1:]
		if !m.channels.Delete(f.id, f.ch) {
			continue
		}
		if err := f.ch.Close(); err != nil {
			m.log.Debug("closing failed channel", slog.String("client_id", f.id.String()), sl.Err(err))
		}
		m.remove(f.id, domain.EndReasonDisconnect)
	}
}
