package matchmaking

import (
	"log/slog"

	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

// Verify checks partner symmetry and queue membership for every session and
// repairs violations by resetting the affected clients to idle. It returns the
// number of repairs made.
func (m *Matchmaker) Verify() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reapFailed()

	repairs := 0
	for _, id := range m.queue.Snapshot() {
		if s, err := m.sessions.Get(id); err != nil || s.Paired() {
			m.queue.Remove(id)
			repairs++
		}
	}

	for _, id := range m.sessions.IDs() {
		s, err := m.sessions.Get(id)
		if err != nil {
			continue
		}
		if !s.Paired() {
			if m.queue.Enqueue(id) {
				repairs++
			}
			continue
		}
		if p, err := m.sessions.Get(s.Partner); err == nil && p.Partner == id {
			continue
		}
		m.log.Error("asymmetric partnership",
			slog.String("client_id", id.String()),
			slog.String("partner_id", s.Partner.String()),
		)
		repairs += m.repair(s)
	}

	if repairs > 0 {
		m.pairAll()
	}
	return repairs
}

// repair resets s and, unless it is validly paired with someone else, the
// client s points at. Both return to the queue.
func (m *Matchmaker) repair(s *domain.ClientSession) int {
	repaired := 1
	at := m.now()
	formerID := s.Partner
	s.Unpair()
	m.queue.Enqueue(s.ID)
	m.observer.PairEnded(s.ID, formerID, domain.EndReasonRepair, at)

	other, err := m.sessions.Get(formerID)
	if err != nil {
		return repaired
	}
	if other.Paired() {
		if q, err := m.sessions.Get(other.Partner); err == nil && q.Partner == other.ID {
			return repaired
		}
	}
	other.Unpair()
	m.queue.Enqueue(other.ID)
	return repaired + 1
}
