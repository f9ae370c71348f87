package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClientID is the opaque identity issued to an anonymous client. It is the only
// correlation key between push channels, signals and sessions.
type ClientID string

func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// ParseClientID accepts ids previously issued by NewClientID.
func ParseClientID(s string) (ClientID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ClientID(id.String()), nil
}

func (id ClientID) String() string {
	return string(id)
}

func (id ClientID) IsZero() bool {
	return id == ""
}

// ClientSession is the matchmaking state of a single registered client.
// A zero Partner means the client is idle and must be waiting in the queue.
type ClientSession struct {
	ID      ClientID
	Partner ClientID
	Ready   bool
	// ReadyAt orders readiness within a partnership; lower became ready first.
	ReadyAt  uint64
	InCall   bool
	JoinedAt time.Time
	PairedAt time.Time
}

func NewClientSession(id ClientID) *ClientSession {
	return &ClientSession{
		ID:       id,
		JoinedAt: time.Now().UTC(),
	}
}

func (s *ClientSession) Paired() bool {
	return !s.Partner.IsZero()
}

// PairWith links the session to partner and clears any handshake progress.
func (s *ClientSession) PairWith(partner ClientID, at time.Time) {
	s.Partner = partner
	s.PairedAt = at
	s.resetHandshake()
}

// Unpair returns the session to the idle state.
func (s *ClientSession) Unpair() {
	s.Partner = ""
	s.PairedAt = time.Time{}
	s.resetHandshake()
}

func (s *ClientSession) resetHandshake() {
	s.Ready = false
	s.ReadyAt = 0
	s.InCall = false
}
