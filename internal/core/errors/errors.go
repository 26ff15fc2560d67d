package errors

import "errors"

// Relay errors - these cover protocol violations and delivery failures.
var (
	// Bridge request validation
	ErrRoomRequired = errors.New("room is required")
	ErrEmptyRequest = errors.New("empty request")

	// Subscriber delivery
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientClosed   = errors.New("client connection closed")
)
