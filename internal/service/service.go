package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/internal/matchmaking"
	"github.com/pion/webrtc/v3"
)

type CallInteractor interface {
	IssueIdentity(ctx context.Context) domain.ClientID
	Connect(ctx context.Context, id domain.ClientID, ch matchmaking.EventChannel)
	Disconnect(ctx context.Context, id domain.ClientID, ch matchmaking.EventChannel)
	HandleSignal(ctx context.Context, from domain.ClientID, sig domain.Signal) error
	RejectSignal(ctx context.Context, from domain.ClientID, err error)
	Session(ctx context.Context, id domain.ClientID) (domain.ClientSession, error)
	ListMatches(ctx context.Context, id domain.ClientID, limit int) ([]*domain.Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	Stats(ctx context.Context) (Stats, error)
	ICEServers() []webrtc.ICEServer
}
