package domain

import (
	"bytes"
	"encoding/json"
)

type SignalType string

const (
	SignalJoin         SignalType = "join"
	SignalReady        SignalType = "ready"
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
	SignalNext         SignalType = "next"
	SignalSkip         SignalType = "skip"
	SignalLeave        SignalType = "leave"
)

// IsRelay reports whether signals of this type are forwarded verbatim to the partner.
func (t SignalType) IsRelay() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// Signal is an inbound message from a client. Payload is opaque to the relay.
type Signal struct {
	Type    SignalType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewSignal(t SignalType, payload json.RawMessage) Signal {
	return Signal{Type: t, Payload: payload}
}

func (s Signal) HasPayload() bool {
	trimmed := bytes.TrimSpace(s.Payload)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
