package transport

import "errors"

var (
	// ErrUnknownMessageKind is returned when an inbound envelope carries a
	// kind outside the protocol's closed set.
	ErrUnknownMessageKind = errors.New("unknown message kind")

	// ErrConnClosed is returned when the remote closed the connection.
	ErrConnClosed = errors.New("connection closed")
)
