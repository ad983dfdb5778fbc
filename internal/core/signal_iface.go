package core

import "errors"

var (
	// ErrBackpressure means the peer cannot keep up and should be kicked.
	ErrBackpressure = errors.New("backpressure")
	// ErrShed means a lossy frame was dropped; the peer stays connected.
	ErrShed       = errors.New("frame shed")
	ErrConnClosed = errors.New("connection closed")
)

// Frame is an encoded outbound event.
// Lossy frames (cursor and input updates) may be shed under backpressure.
type Frame struct {
	Data  []byte
	Lossy bool
}

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend never blocks.
	TrySend(Frame) error
	Close()
}
