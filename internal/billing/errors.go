package billing

import "errors"

var (
	// ErrUnauthorized means the event's token resolved to no known client.
	// Terminal for the request; nothing was mutated.
	ErrUnauthorized = errors.New("billing: unknown client token")

	// ErrInvalidEvent means the event payload is malformed or incomplete.
	// Terminal for the request; nothing was mutated.
	ErrInvalidEvent = errors.New("billing: invalid event")

	// ErrClientNotFound means a funding or adjustment referenced a client id
	// that does not exist.
	ErrClientNotFound = errors.New("billing: client not found")
)
