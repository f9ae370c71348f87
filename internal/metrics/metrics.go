package metrics

import "sync"

// Counter names.
const (
	ChannelsOpened     = "channels_opened"
	ChannelsClosed     = "channels_closed"
	PairsFormed        = "pairs_formed"
	PairsEnded         = "pairs_ended"
	SignalsHandled     = "signals_handled"
	SignalsRejected    = "signals_rejected"
	SignalsRateLimited = "signals_rate_limited"
	EventsDropped      = "events_dropped"
	InvariantRepairs   = "invariant_repairs"
	HistoryDropped     = "history_dropped"
)

// Metrics is a concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
