package core

// Frame is a raw encoded message.
type Frame []byte

// SignalConnection abstracts the client event transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
