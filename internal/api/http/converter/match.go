package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

type MatchResponse struct {
	ID        uuid.UUID        `json:"id"`
	PartnerID domain.ClientID  `json:"partner_id"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	EndReason domain.EndReason `json:"end_reason,omitempty"`
	Active    bool             `json:"active"`
}

type MatchDetailResponse struct {
	ID        uuid.UUID        `json:"id"`
	ClientA   domain.ClientID  `json:"client_a"`
	ClientB   domain.ClientID  `json:"client_b"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	EndReason domain.EndReason `json:"end_reason,omitempty"`
	Active    bool             `json:"active"`
}

type SessionResponse struct {
	ID        domain.ClientID `json:"id"`
	PartnerID domain.ClientID `json:"partner_id,omitempty"`
	State     string          `json:"state"`
	Ready     bool            `json:"ready"`
	JoinedAt  time.Time       `json:"joined_at"`
	PairedAt  *time.Time      `json:"paired_at,omitempty"`
}

// MatchesToApi renders matches from the point of view of client id.
func MatchesToApi(id domain.ClientID, matches []*domain.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		resp := MatchResponse{
			ID:        m.ID,
			PartnerID: m.Other(id),
			StartedAt: m.StartedAt,
			EndReason: m.EndReason,
			Active:    m.Active(),
		}
		if !m.Active() {
			endedAt := m.EndedAt
			resp.EndedAt = &endedAt
		}
		out = append(out, resp)
	}
	return out
}

func MatchToApi(m *domain.Match) *MatchDetailResponse {
	resp := &MatchDetailResponse{
		ID:        m.ID,
		ClientA:   m.ClientA,
		ClientB:   m.ClientB,
		StartedAt: m.StartedAt,
		EndReason: m.EndReason,
		Active:    m.Active(),
	}
	if !m.Active() {
		endedAt := m.EndedAt
		resp.EndedAt = &endedAt
	}
	return resp
}

func SessionToApi(s domain.ClientSession) *SessionResponse {
	resp := &SessionResponse{
		ID:       s.ID,
		Ready:    s.Ready,
		JoinedAt: s.JoinedAt,
		State:    sessionState(s),
	}
	if s.Paired() {
		resp.PartnerID = s.Partner
		pairedAt := s.PairedAt
		resp.PairedAt = &pairedAt
	}
	return resp
}

func sessionState(s domain.ClientSession) string {
	switch {
	case s.InCall:
		return "in-call"
	case s.Paired():
		return "paired"
	default:
		return "waiting"
	}
}
