package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/internal/matchmaking"
	"github.com/immxrtalbeast/axenix_roulette/internal/metrics"
	"github.com/immxrtalbeast/axenix_roulette/internal/repository"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/sl"
	"github.com/pion/webrtc/v3"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("signal rate limit exceeded")

const (
	defaultHistoryBuffer = 1024
	historyWriteTimeout  = 5 * time.Second
)

type CallConfig struct {
	ICEServers       []webrtc.ICEServer
	SignalsPerSecond float64
	SignalBurst      int
	VerifyInterval   time.Duration
	HistoryBuffer    int
}

// Stats extends the matchmaker snapshot with the number of recorded matches.
type Stats struct {
	matchmaking.Stats
	MatchesTotal int64 `json:"matches_total"`
}

type historyKind int

const (
	historyFormed historyKind = iota
	historyEnded
)

type historyEvent struct {
	kind   historyKind
	a, b   domain.ClientID
	reason domain.EndReason
	at     time.Time
}

type pairKey struct {
	lo, hi domain.ClientID
}

func newPairKey(a, b domain.ClientID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// CallService wires the matchmaker to match history, metrics and per-client
// rate limiting. It is the matchmaker's observer.
type CallService struct {
	mm      *matchmaking.Matchmaker
	matches repository.MatchRepository
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     CallConfig

	history chan historyEvent
	// active maps a live pairing to its match record. Owned by the recorder.
	active map[pairKey]uuid.UUID

	// limiters holds one signal limiter per registered session. Entries follow
	// the matchmaker's SessionAdded/SessionRemoved notifications.
	limitersMu sync.Mutex
	limiters   map[domain.ClientID]*rate.Limiter
}

func NewCallService(matches repository.MatchRepository, m *metrics.Metrics, log *slog.Logger, cfg CallConfig) *CallService {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if cfg.HistoryBuffer <= 0 {
		cfg.HistoryBuffer = defaultHistoryBuffer
	}
	s := &CallService{
		matches:  matches,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		history:  make(chan historyEvent, cfg.HistoryBuffer),
		active:   make(map[pairKey]uuid.UUID),
		limiters: make(map[domain.ClientID]*rate.Limiter),
	}
	s.mm = matchmaking.New(matchmaking.Config{
		ICEServers: cfg.ICEServers,
		Observer:   s,
		Log:        log.With(slog.String("component", "matchmaker")),
	})
	return s
}

// Run records match history and periodically verifies matchmaker invariants
// until ctx is cancelled. Pending history events are flushed before it returns.
func (s *CallService) Run(ctx context.Context) {
	const op = "service.call.run"
	log := s.log.With(slog.String("op", op))

	var tick <-chan time.Time
	if s.cfg.VerifyInterval > 0 {
		ticker := time.NewTicker(s.cfg.VerifyInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev := <-s.history:
			s.record(ev)
		case <-tick:
			s.verify()
		case <-ctx.Done():
			s.flush()
			log.Info("call service stopped")
			return
		}
	}
}

func (s *CallService) flush() {
	for {
		select {
		case ev := <-s.history:
			s.record(ev)
		default:
			return
		}
	}
}

func (s *CallService) verify() {
	const op = "service.call.verify"

	if n := s.mm.Verify(); n > 0 {
		s.metrics.Add(metrics.InvariantRepairs, uint64(n))
		s.log.Warn("matchmaker invariants repaired", slog.String("op", op), slog.Int("repairs", n))
	}
}

func (s *CallService) record(ev historyEvent) {
	const op = "service.call.record"
	log := s.log.With(slog.String("op", op))

	if s.matches == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	key := newPairKey(ev.a, ev.b)
	switch ev.kind {
	case historyFormed:
		match := domain.NewMatch(ev.a, ev.b, ev.at)
		if err := s.matches.Create(ctx, match); err != nil {
			log.Error("failed to record match", sl.Err(err))
			return
		}
		s.active[key] = match.ID
	case historyEnded:
		id, ok := s.active[key]
		if !ok {
			return
		}
		delete(s.active, key)
		if err := s.matches.End(ctx, id, ev.reason, ev.at); err != nil {
			log.Error("failed to end match", slog.String("match_id", id.String()), sl.Err(err))
		}
	}
}

func (s *CallService) enqueueHistory(ev historyEvent) {
	select {
	case s.history <- ev:
	default:
		s.metrics.Inc(metrics.HistoryDropped)
	}
}

func (s *CallService) SessionAdded(id domain.ClientID) {
	limit := rate.Inf
	if s.cfg.SignalsPerSecond > 0 {
		limit = rate.Limit(s.cfg.SignalsPerSecond)
	}

	s.limitersMu.Lock()
	s.limiters[id] = rate.NewLimiter(limit, max(s.cfg.SignalBurst, 1))
	s.limitersMu.Unlock()
}

func (s *CallService) SessionRemoved(id domain.ClientID, _ domain.EndReason) {
	s.limitersMu.Lock()
	delete(s.limiters, id)
	s.limitersMu.Unlock()
}

func (s *CallService) PairFormed(a, b domain.ClientID, at time.Time) {
	s.metrics.Inc(metrics.PairsFormed)
	s.enqueueHistory(historyEvent{kind: historyFormed, a: a, b: b, at: at})
}

func (s *CallService) PairEnded(a, b domain.ClientID, reason domain.EndReason, at time.Time) {
	s.metrics.Inc(metrics.PairsEnded)
	s.enqueueHistory(historyEvent{kind: historyEnded, a: a, b: b, reason: reason, at: at})
}

func (s *CallService) EventDropped(domain.ClientID, domain.EventType) {
	s.metrics.Inc(metrics.EventsDropped)
}

func (s *CallService) IssueIdentity(ctx context.Context) domain.ClientID {
	id := domain.NewClientID()
	s.log.Debug("identity issued", slog.String("client_id", id.String()))
	return id
}

func (s *CallService) Connect(ctx context.Context, id domain.ClientID, ch matchmaking.EventChannel) {
	const op = "service.call.connect"

	s.metrics.Inc(metrics.ChannelsOpened)
	s.mm.Open(id, ch)
	s.log.Debug("push channel opened", slog.String("op", op), slog.String("client_id", id.String()))
}

func (s *CallService) Disconnect(ctx context.Context, id domain.ClientID, ch matchmaking.EventChannel) {
	const op = "service.call.disconnect"

	s.metrics.Inc(metrics.ChannelsClosed)
	s.mm.Close(id, ch)
	s.log.Debug("push channel closed", slog.String("op", op), slog.String("client_id", id.String()))
}

func (s *CallService) HandleSignal(ctx context.Context, from domain.ClientID, sig domain.Signal) error {
	const op = "service.call.signal"
	log := s.log.With(
		slog.String("op", op),
		slog.String("client_id", from.String()),
		slog.String("type", string(sig.Type)),
	)

	// Unregistered senders have no limiter: their signals either create the
	// session (join) or fail without touching any state.
	if l, ok := s.limiter(from); ok && !l.Allow() {
		s.metrics.Inc(metrics.SignalsRateLimited)
		log.Warn("signal rate limited")
		return ErrRateLimited
	}

	if err := s.mm.Signal(from, sig); err != nil {
		s.metrics.Inc(metrics.SignalsRejected)
		log.Info("signal rejected", sl.Err(err))
		return err
	}
	s.metrics.Inc(metrics.SignalsHandled)
	return nil
}

// RejectSignal accounts for an inbound frame that could not be decoded into a
// signal at all.
func (s *CallService) RejectSignal(ctx context.Context, from domain.ClientID, err error) {
	const op = "service.call.reject"

	s.metrics.Inc(metrics.SignalsRejected)
	s.log.Info("signal rejected",
		slog.String("op", op),
		slog.String("client_id", from.String()),
		sl.Err(err),
	)
}

func (s *CallService) Session(ctx context.Context, id domain.ClientID) (domain.ClientSession, error) {
	return s.mm.Session(id)
}

func (s *CallService) ListMatches(ctx context.Context, id domain.ClientID, limit int) ([]*domain.Match, error) {
	if s.matches == nil {
		return []*domain.Match{}, nil
	}
	return s.matches.ListByClient(ctx, id, limit)
}

func (s *CallService) GetMatch(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	if s.matches == nil {
		return nil, repository.ErrMatchNotFound
	}
	return s.matches.GetByID(ctx, id)
}

func (s *CallService) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Stats: s.mm.Stats()}
	if s.matches == nil {
		return stats, nil
	}
	total, err := s.matches.Count(ctx)
	if err != nil {
		return stats, err
	}
	stats.MatchesTotal = total
	return stats, nil
}

func (s *CallService) ICEServers() []webrtc.ICEServer {
	return s.cfg.ICEServers
}

// Shutdown closes every push channel. Run should keep going until Shutdown
// returns so the final match endings are recorded.
func (s *CallService) Shutdown() {
	s.mm.Shutdown()
}

func (s *CallService) limiter(id domain.ClientID) (*rate.Limiter, bool) {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	l, ok := s.limiters[id]
	return l, ok
}
