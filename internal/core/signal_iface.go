package core

// Frame is a raw outbound payload (JSON-encoded event).
type Frame []byte

// SignalConn abstracts one client's persistent messaging transport.
// Owned by the adapter; the adapter must Close() it. TrySend never
// blocks: delivery is best-effort, fire-and-forget.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
