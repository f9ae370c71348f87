package matchmaking

import (
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

// Signal handles an inbound signal from a client. Only unknown senders and
// malformed relay signals are reported as errors; everything else, including
// unknown types and signals that need a partner while idle, is acknowledged.
func (m *Matchmaker) Signal(from domain.ClientID, sig domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reapFailed()

	if sig.Type == domain.SignalJoin {
		m.join(from)
		return nil
	}

	s, err := m.sessions.Get(from)
	if err != nil {
		return fmt.Errorf("signal %q from %s: %w", sig.Type, from, err)
	}

	switch {
	case sig.Type == domain.SignalReady:
		m.ready(s)
	case sig.Type.IsRelay():
		if !sig.HasPayload() {
			return fmt.Errorf("%s without payload: %w", sig.Type, ErrMalformedSignal)
		}
		m.relay(s, sig)
	case sig.Type == domain.SignalNext, sig.Type == domain.SignalSkip:
		m.skip(s)
	case sig.Type == domain.SignalLeave:
		m.remove(from, domain.EndReasonLeave)
	default:
		m.log.Debug("ignoring unknown signal",
			slog.String("client_id", from.String()),
			slog.String("type", string(sig.Type)),
		)
	}
	return nil
}

// partnerOf returns the partner session of s when the partnership is intact.
// A one-sided partnership is repaired on the spot and reported as absent.
func (m *Matchmaker) partnerOf(s *domain.ClientSession) (*domain.ClientSession, bool) {
	if !s.Paired() {
		return nil, false
	}
	p, err := m.sessions.Get(s.Partner)
	if err == nil && p.Partner == s.ID {
		return p, true
	}
	m.log.Error("asymmetric partnership",
		slog.String("client_id", s.ID.String()),
		slog.String("partner_id", s.Partner.String()),
	)
	m.repair(s)
	m.pairAll()
	return nil, false
}

func (m *Matchmaker) ready(s *domain.ClientSession) {
	p, ok := m.partnerOf(s)
	if !ok {
		m.log.Debug("ready without partner", slog.String("client_id", s.ID.String()))
		return
	}
	if s.Ready {
		return
	}
	m.readySeq++
	s.Ready = true
	s.ReadyAt = m.readySeq

	if !p.Ready || s.InCall {
		return
	}
	s.InCall = true
	p.InCall = true

	// The partner that became ready first creates the offer.
	sInitiates := s.ReadyAt < p.ReadyAt
	m.log.Info("call starting",
		slog.String("client_a", s.ID.String()),
		slog.String("client_b", p.ID.String()),
		slog.Bool("client_a_initiator", sInitiates),
	)
	m.send(s.ID, domain.StartCallEvent(p.ID, sInitiates))
	m.send(p.ID, domain.StartCallEvent(s.ID, !sInitiates))
}

func (m *Matchmaker) relay(s *domain.ClientSession, sig domain.Signal) {
	p, ok := m.partnerOf(s)
	if !ok {
		m.log.Debug("relay without partner",
			slog.String("client_id", s.ID.String()),
			slog.String("type", string(sig.Type)),
		)
		return
	}
	m.send(p.ID, domain.RelayEvent(sig.Type, s.ID, sig.Payload))
}

// skip ends the current partnership of s and sends both clients back to the
// queue, the abandoned partner first.
func (m *Matchmaker) skip(s *domain.ClientSession) {
	p, ok := m.partnerOf(s)
	if !ok {
		return
	}
	s.Unpair()
	m.release(p, s.ID, domain.EndReasonSkip)
	m.queue.Enqueue(s.ID)
	m.pairAll()
}
