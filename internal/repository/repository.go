package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchExists   = errors.New("match already exists")
)

// MatchRepository stores the history of pairings. It is a durability layer
// only; live matchmaking state never depends on it.
type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	End(ctx context.Context, id uuid.UUID, reason domain.EndReason, endedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	ListByClient(ctx context.Context, clientID domain.ClientID, limit int) ([]*domain.Match, error)
	Count(ctx context.Context) (int64, error)
}
