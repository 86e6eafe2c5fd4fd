package channel

import "github.com/google/uuid"

// Handler receives the positional arguments of a delivery.
type Handler func(args ...any)

// Callback is a registered handler. The pointer is the handler's identity:
// registering the same *Callback twice on a channel is a no-op, and the same
// *Callback is what UnregisterCallback removes.
type Callback struct {
	ID string
	fn Handler
}

// NewCallback wraps fn in a Callback with a fresh ID.
func NewCallback(fn Handler) *Callback {
	return &Callback{ID: uuid.NewString(), fn: fn}
}

func (c *Callback) invoke(args []any) {
	if c.fn != nil {
		c.fn(args...)
	}
}

// ChannelInfo is a point-in-time view of one channel record.
type ChannelInfo struct {
	Name      string
	Started   bool
	Callbacks []string // callback IDs in registration order
}
