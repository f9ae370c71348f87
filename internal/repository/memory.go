package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

type InMemoryMatchRepository struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]*domain.Match
	// byClient indexes match ids per participant in insertion order.
	byClient map[domain.ClientID][]uuid.UUID
}

func NewInMemoryMatchRepository() *InMemoryMatchRepository {
	return &InMemoryMatchRepository{
		matches:  make(map[uuid.UUID]*domain.Match),
		byClient: make(map[domain.ClientID][]uuid.UUID),
	}
}

func (r *InMemoryMatchRepository) Create(ctx context.Context, match *domain.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.matches[match.ID]; ok {
		return ErrMatchExists
	}

	stored := *match
	r.matches[match.ID] = &stored
	r.byClient[match.ClientA] = append(r.byClient[match.ClientA], match.ID)
	r.byClient[match.ClientB] = append(r.byClient[match.ClientB], match.ID)
	return nil
}

func (r *InMemoryMatchRepository) End(ctx context.Context, id uuid.UUID, reason domain.EndReason, endedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.matches[id]
	if !ok {
		return ErrMatchNotFound
	}
	match.End(reason, endedAt)
	return nil
}

func (r *InMemoryMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	match, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	out := *match
	return &out, nil
}

// ListByClient returns the most recent matches of clientID first.
func (r *InMemoryMatchRepository) ListByClient(ctx context.Context, clientID domain.ClientID, limit int) ([]*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byClient[clientID]
	result := make([]*domain.Match, 0, len(ids))
	for _, id := range ids {
		match := *r.matches[id]
		result = append(result, &match)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *InMemoryMatchRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.matches)), nil
}
