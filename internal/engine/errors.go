package engine

import "errors"

var (
	// ErrProtocolViolation marks a fatal protocol-invariant violation:
	// a cursor mismatch, a reply arriving with a non-empty queue where
	// emptiness is required, or non-monotonic blob positions. The session
	// terminates and is not retried internally.
	ErrProtocolViolation = errors.New("sync protocol violation")

	// ErrUnknownMessage marks an inbound message outside the known set.
	ErrUnknownMessage = errors.New("unknown sync message")

	// ErrIdentityMismatch is returned at startup when the caller's
	// identity does not match the creator recorded in the space store.
	ErrIdentityMismatch = errors.New("space creator identity mismatch")

	// ErrSessionClosed is returned when a terminated engine is used.
	ErrSessionClosed = errors.New("sync session closed")

	// ErrRemoteClosed is returned when the remote forcibly ends the
	// session with a bye carrying a reason.
	ErrRemoteClosed = errors.New("remote closed sync session")
)
