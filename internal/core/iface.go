package core

// Frame is a marshaled outbound payload.
type Frame []byte

// Conn abstracts a participant's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	TrySend(Frame) error
	Close()
}

// DeliveryResult reports per-recipient delivery stats for one broadcast.
// Dropped members had a full send buffer or a closed connection; the
// broadcast itself still reached everyone else.
type DeliveryResult struct {
	SentTo  int
	Dropped []*Member
}
