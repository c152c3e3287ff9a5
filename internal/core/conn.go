// Package core holds the in-memory call model: rooms, peer sessions
// and the registry tying them to media-engine routers. It never touches
// transport resources it does not own; connections belong to the signal
// adapter and are only written to here.
package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a serialized signaling message.
type Frame []byte

// SignalConnection abstracts the messaging transport of one peer.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues a frame without blocking. ErrConnClosed means
	// the peer is already gone, ErrBackpressure that its queue is full.
	TrySend(Frame) error
	Close()
}
