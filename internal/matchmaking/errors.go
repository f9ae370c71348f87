package matchmaking

import "errors"

var (
	// ErrSessionNotFound is returned for signals from an id with no registered session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrChannelUnavailable marks an event that could not be delivered. It is
	// logged and counted, never returned to callers.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrMalformedSignal is returned when a signal lacks a field its type requires.
	ErrMalformedSignal = errors.New("malformed signal")
)
