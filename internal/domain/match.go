package domain

import (
	"time"

	"github.com/google/uuid"
)

type EndReason string

const (
	EndReasonSkip       EndReason = "skip"
	EndReasonLeave      EndReason = "leave"
	EndReasonDisconnect EndReason = "disconnect"
	EndReasonRepair     EndReason = "repair"
	EndReasonShutdown   EndReason = "shutdown"
)

// Match is the history record of one pairing formed by the matchmaker.
type Match struct {
	ID        uuid.UUID `json:"id"`
	ClientA   ClientID  `json:"client_a"`
	ClientB   ClientID  `json:"client_b"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	EndReason EndReason `json:"end_reason,omitempty"`
}

func NewMatch(a, b ClientID, startedAt time.Time) *Match {
	return &Match{
		ID:        uuid.New(),
		ClientA:   a,
		ClientB:   b,
		StartedAt: startedAt.UTC(),
	}
}

func (m *Match) Active() bool {
	return m.EndedAt.IsZero()
}

func (m *Match) Involves(id ClientID) bool {
	return m.ClientA == id || m.ClientB == id
}

func (m *Match) End(reason EndReason, at time.Time) {
	if !m.Active() {
		return
	}
	m.EndedAt = at.UTC()
	m.EndReason = reason
}

// Other returns the counterpart of id in the match.
func (m *Match) Other(id ClientID) ClientID {
	if m.ClientA == id {
		return m.ClientB
	}
	return m.ClientA
}
