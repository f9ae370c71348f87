package matchmaking

import (
	"sort"

	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

// Registry maps client ids to their sessions. It is plain data and relies on
// the Matchmaker for serialization.
type Registry struct {
	sessions map[domain.ClientID]*domain.ClientSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ClientID]*domain.ClientSession),
	}
}

// Register creates an idle session for id unless one already exists.
// The boolean reports whether a session was created.
func (r *Registry) Register(id domain.ClientID) (*domain.ClientSession, bool) {
	if s, ok := r.sessions[id]; ok {
		return s, false
	}
	s := domain.NewClientSession(id)
	r.sessions[id] = s
	return s, true
}

func (r *Registry) Get(id domain.ClientID) (*domain.ClientSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Delete(id domain.ClientID) (*domain.ClientSession, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return s, true
}

func (r *Registry) Len() int {
	return len(r.sessions)
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []domain.ClientID {
	ids := make([]domain.ClientID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
