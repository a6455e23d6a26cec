package core

import "errors"

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// Frame is a raw outbound payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full queue returns ErrBackpressure.
//
//go:generate mockgen -destination=../mocks/signal_connection.go -package=mocks github.com/dkeye/babel/internal/core SignalConnection
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
