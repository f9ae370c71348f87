package domain

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

type EventType string

const (
	EventConnected           EventType = "connected"
	EventPartnerFound        EventType = "partner-found"
	EventStartCall           EventType = "start-call"
	EventOffer               EventType = "offer"
	EventAnswer              EventType = "answer"
	EventICECandidate        EventType = "ice-candidate"
	EventPartnerDisconnected EventType = "partner-disconnected"
	// EventSignalRejected answers a socket signal the relay refused. It is
	// sent only to the sender.
	EventSignalRejected      EventType = "signal-rejected"
)

// Event is a server-to-client message delivered over the push channel.
// Only the fields relevant to Type are set.
type Event struct {
	Type       EventType          `json:"type"`
	ID         ClientID           `json:"id,omitempty"`
	PartnerID  ClientID           `json:"partner_id,omitempty"`
	Initiator  *bool              `json:"initiator,omitempty"`
	From       ClientID           `json:"from,omitempty"`
	Payload    json.RawMessage    `json:"payload,omitempty"`
	ICEServers []webrtc.ICEServer `json:"ice_servers,omitempty"`
	Signal     SignalType         `json:"signal,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func ConnectedEvent(id ClientID, iceServers []webrtc.ICEServer) Event {
	return Event{Type: EventConnected, ID: id, ICEServers: iceServers}
}

func PartnerFoundEvent(partner ClientID) Event {
	return Event{Type: EventPartnerFound, PartnerID: partner}
}

func StartCallEvent(partner ClientID, initiator bool) Event {
	return Event{Type: EventStartCall, PartnerID: partner, Initiator: &initiator}
}

func PartnerDisconnectedEvent(partner ClientID) Event {
	return Event{Type: EventPartnerDisconnected, PartnerID: partner}
}

// RelayEvent wraps a forwarded offer, answer or candidate, tagged with its sender.
func RelayEvent(t SignalType, from ClientID, payload json.RawMessage) Event {
	return Event{Type: EventType(t), From: from, Payload: payload}
}

func SignalRejectedEvent(t SignalType, err error) Event {
	return Event{Type: EventSignalRejected, Signal: t, Error: err.Error()}
}

// IsInitiator is false for every event that carries no initiator flag.
func (e Event) IsInitiator() bool {
	return e.Initiator != nil && *e.Initiator
}
