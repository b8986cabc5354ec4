// Package engine implements the per-space sync protocol state machine.
//
// One Engine drives synchronization of a single space against one remote
// host: it negotiates identity with a hello/welcome handshake, exchanges
// position cursors with ask/did-ask, pulls missing blobs to convergence and
// offers local blobs for push, reporting progress to its owning process.
//
// An Engine is a single-threaded actor. The owner must serialize all calls
// into it: one inbound message or tick at a time, no concurrent access. The
// engine performs no blocking I/O of its own beyond the store call needed to
// service the current message.
package engine
