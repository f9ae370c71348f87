package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/internal/matchmaking"
	"github.com/immxrtalbeast/axenix_roulette/internal/metrics"
	"github.com/immxrtalbeast/axenix_roulette/internal/repository"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func (c *fakeChannel) Send(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EventType, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

type matchRepoMock struct {
	mock.Mock
}

func (m *matchRepoMock) Create(ctx context.Context, match *domain.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *matchRepoMock) End(ctx context.Context, id uuid.UUID, reason domain.EndReason, endedAt time.Time) error {
	args := m.Called(ctx, id, reason, endedAt)
	return args.Error(0)
}

func (m *matchRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	args := m.Called(ctx, id)
	match, _ := args.Get(0).(*domain.Match)
	return match, args.Error(1)
}

func (m *matchRepoMock) ListByClient(ctx context.Context, clientID domain.ClientID, limit int) ([]*domain.Match, error) {
	args := m.Called(ctx, clientID, limit)
	matches, _ := args.Get(0).([]*domain.Match)
	return matches, args.Error(1)
}

func (m *matchRepoMock) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(t *testing.T, repo repository.MatchRepository, cfg CallConfig) (*CallService, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return NewCallService(repo, m, slogdiscard.NewDiscardLogger(), cfg), m
}

func runService(t *testing.T, s *CallService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *CallService) limiterCount() int {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	return len(s.limiters)
}

func TestCallService_HandleSignalRateLimited(t *testing.T) {
	s, m := newTestService(t, nil, CallConfig{SignalsPerSecond: 0.001, SignalBurst: 2})
	ctx := context.Background()
	id := s.IssueIdentity(ctx)

	require.NoError(t, s.HandleSignal(ctx, id, domain.NewSignal(domain.SignalJoin, nil)))
	require.NoError(t, s.HandleSignal(ctx, id, domain.NewSignal(domain.SignalReady, nil)))
	require.NoError(t, s.HandleSignal(ctx, id, domain.NewSignal(domain.SignalReady, nil)))
	require.ErrorIs(t, s.HandleSignal(ctx, id, domain.NewSignal(domain.SignalReady, nil)), ErrRateLimited)

	assert.Equal(t, uint64(3), m.Get(metrics.SignalsHandled))
	assert.Equal(t, uint64(1), m.Get(metrics.SignalsRateLimited))

	other := s.IssueIdentity(ctx)
	require.NoError(t, s.HandleSignal(ctx, other, domain.NewSignal(domain.SignalJoin, nil)))
}

func TestCallService_LimitersFollowSessions(t *testing.T) {
	s, _ := newTestService(t, nil, CallConfig{SignalsPerSecond: 1, SignalBurst: 1})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		err := s.HandleSignal(ctx, domain.NewClientID(), domain.NewSignal(domain.SignalReady, nil))
		require.ErrorIs(t, err, matchmaking.ErrSessionNotFound)
	}
	assert.Zero(t, s.limiterCount(), "unknown senders must not allocate limiters")

	id := s.IssueIdentity(ctx)
	ch := &fakeChannel{}
	s.Connect(ctx, id, ch)
	assert.Equal(t, 1, s.limiterCount())

	require.NoError(t, s.HandleSignal(ctx, id, domain.NewSignal(domain.SignalLeave, nil)))
	assert.Zero(t, s.limiterCount())
	s.Disconnect(ctx, id, ch)
	assert.Zero(t, s.limiterCount())

	a, b := s.IssueIdentity(ctx), s.IssueIdentity(ctx)
	chA := &fakeChannel{}
	s.Connect(ctx, a, chA)
	s.Connect(ctx, b, &fakeChannel{})
	s.Disconnect(ctx, a, chA)
	assert.Equal(t, 1, s.limiterCount())

	s.Shutdown()
	assert.Zero(t, s.limiterCount())
}

func TestCallService_RejectSignalCounts(t *testing.T) {
	s, m := newTestService(t, nil, CallConfig{})
	s.RejectSignal(context.Background(), "u1", matchmaking.ErrMalformedSignal)
	assert.Equal(t, uint64(1), m.Get(metrics.SignalsRejected))
}

func TestCallService_GetMatch(t *testing.T) {
	repo := repository.NewInMemoryMatchRepository()
	s, _ := newTestService(t, repo, CallConfig{})
	ctx := context.Background()

	match := domain.NewMatch("a", "b", time.Now())
	require.NoError(t, repo.Create(ctx, match))

	got, err := s.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, match.ID, got.ID)

	_, err = s.GetMatch(ctx, uuid.New())
	require.ErrorIs(t, err, repository.ErrMatchNotFound)

	empty, _ := newTestService(t, nil, CallConfig{})
	_, err = empty.GetMatch(ctx, match.ID)
	require.ErrorIs(t, err, repository.ErrMatchNotFound)
}

func TestCallService_HandleSignalErrors(t *testing.T) {
	s, m := newTestService(t, nil, CallConfig{})
	ctx := context.Background()

	err := s.HandleSignal(ctx, "ghost", domain.NewSignal(domain.SignalReady, nil))
	require.ErrorIs(t, err, matchmaking.ErrSessionNotFound)

	id := s.IssueIdentity(ctx)
	s.Connect(ctx, id, &fakeChannel{})
	err = s.HandleSignal(ctx, id, domain.NewSignal(domain.SignalOffer, nil))
	require.ErrorIs(t, err, matchmaking.ErrMalformedSignal)

	assert.Equal(t, uint64(2), m.Get(metrics.SignalsRejected))
}

func TestCallService_RecordsMatchHistory(t *testing.T) {
	repo := repository.NewInMemoryMatchRepository()
	s, m := newTestService(t, repo, CallConfig{})
	runService(t, s)
	ctx := context.Background()

	a, b := s.IssueIdentity(ctx), s.IssueIdentity(ctx)
	chA, chB := &fakeChannel{}, &fakeChannel{}
	s.Connect(ctx, a, chA)
	s.Connect(ctx, b, chB)

	require.Eventually(t, func() bool {
		matches, err := s.ListMatches(ctx, a, 10)
		return err == nil && len(matches) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.HandleSignal(ctx, a, domain.NewSignal(domain.SignalSkip, nil)))

	var skipped *domain.Match
	require.Eventually(t, func() bool {
		matches, err := s.ListMatches(ctx, b, 10)
		if err != nil {
			return false
		}
		for _, match := range matches {
			if !match.Active() {
				skipped = match
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.EndReasonSkip, skipped.EndReason)
	assert.True(t, skipped.Involves(a))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sessions)
	assert.GreaterOrEqual(t, stats.MatchesTotal, int64(1))
	assert.GreaterOrEqual(t, m.Get(metrics.PairsFormed), uint64(2))
	assert.Equal(t, uint64(1), m.Get(metrics.PairsEnded))
	assert.Contains(t, chB.types(), domain.EventPartnerDisconnected)
}

func TestCallService_HistoryUsesRepository(t *testing.T) {
	repo := &matchRepoMock{}
	ended := make(chan domain.EndReason, 1)
	var created *domain.Match
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Match")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Match) }).
		Return(nil).Once()
	repo.On("End", mock.Anything, mock.AnythingOfType("uuid.UUID"), domain.EndReasonDisconnect, mock.Anything).
		Run(func(args mock.Arguments) {
			assert.Equal(t, created.ID, args.Get(1).(uuid.UUID))
			ended <- args.Get(2).(domain.EndReason)
		}).
		Return(nil).Once()

	s, _ := newTestService(t, repo, CallConfig{})
	runService(t, s)
	ctx := context.Background()

	a, b := s.IssueIdentity(ctx), s.IssueIdentity(ctx)
	chA := &fakeChannel{}
	s.Connect(ctx, a, chA)
	s.Connect(ctx, b, &fakeChannel{})
	s.Disconnect(ctx, a, chA)

	select {
	case reason := <-ended:
		assert.Equal(t, domain.EndReasonDisconnect, reason)
	case <-time.After(time.Second):
		t.Fatal("match end was not recorded")
	}
	repo.AssertExpectations(t)
}

func TestCallService_HistoryCreateFailureIsNotFatal(t *testing.T) {
	repo := &matchRepoMock{}
	attempted := make(chan struct{}, 1)
	repo.On("Create", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { attempted <- struct{}{} }).
		Return(errors.New("db down"))

	s, _ := newTestService(t, repo, CallConfig{})
	runService(t, s)
	ctx := context.Background()

	a, b := s.IssueIdentity(ctx), s.IssueIdentity(ctx)
	s.Connect(ctx, a, &fakeChannel{})
	s.Connect(ctx, b, &fakeChannel{})
	<-attempted

	require.NoError(t, s.HandleSignal(ctx, a, domain.NewSignal(domain.SignalLeave, nil)))
	session, err := s.Session(ctx, b)
	require.NoError(t, err)
	assert.False(t, session.Paired())
	repo.AssertNotCalled(t, "End", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCallService_StatsCountError(t *testing.T) {
	repo := &matchRepoMock{}
	repo.On("Count", mock.Anything).Return(int64(0), errors.New("db down"))

	s, _ := newTestService(t, repo, CallConfig{})
	_, err := s.Stats(context.Background())
	require.Error(t, err)
}

func TestCallService_RelaysPayloadBetweenPartners(t *testing.T) {
	s, _ := newTestService(t, nil, CallConfig{})
	ctx := context.Background()
	a, b := s.IssueIdentity(ctx), s.IssueIdentity(ctx)
	chA, chB := &fakeChannel{}, &fakeChannel{}
	s.Connect(ctx, a, chA)
	s.Connect(ctx, b, chB)

	payload := json.RawMessage(`{"sdp":"v=0"}`)
	require.NoError(t, s.HandleSignal(ctx, a, domain.NewSignal(domain.SignalOffer, payload)))

	chB.mu.Lock()
	last := chB.events[len(chB.events)-1]
	chB.mu.Unlock()
	assert.Equal(t, domain.EventOffer, last.Type)
	assert.Equal(t, a, last.From)
	assert.JSONEq(t, string(payload), string(last.Payload))
}

func TestCallService_VerifyLoopRuns(t *testing.T) {
	s, m := newTestService(t, nil, CallConfig{VerifyInterval: 5 * time.Millisecond})
	runService(t, s)
	ctx := context.Background()
	s.Connect(ctx, s.IssueIdentity(ctx), &fakeChannel{})

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, uint64(0), m.Get(metrics.InvariantRepairs))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Waiting)
}

func TestCallService_ShutdownClosesChannels(t *testing.T) {
	s, _ := newTestService(t, nil, CallConfig{})
	ctx := context.Background()
	ch := &fakeChannel{}
	s.Connect(ctx, s.IssueIdentity(ctx), ch)

	s.Shutdown()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.True(t, ch.closed)
}
