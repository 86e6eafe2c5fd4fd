package channel

// Client is the constrained-side registry. It mirrors Dispatcher bookkeeping
// but deletes a channel record as soon as it is emptied, has no bulk
// Start/Stop, and can send outbound messages.
type Client struct {
	r *registry
	t SendTransport
}

// NewClient creates the client-side registry over t.
// A nil transport fails with ErrNilTransport.
func NewClient(t SendTransport, opts ...Option) (*Client, error) {
	if isNilHandle(t) {
		return nil, ErrNilTransport
	}
	return &Client{r: newRegistry("client", t, false, opts...), t: t}, nil
}

// RegisterEvent creates an empty record for name if none exists.
func (c *Client) RegisterEvent(name string) {
	c.r.registerEvent(name)
}

// UnregisterEvent deletes the record for name, detaching its listener if started.
func (c *Client) UnregisterEvent(name string) {
	c.r.unregisterEvent(name)
}

// RegisterCallback adds cb to name, attaching the transport listener on the first one.
func (c *Client) RegisterCallback(name string, cb *Callback, once bool) error {
	return c.r.registerCallback(name, cb, once)
}

// On registers fn as a persistent callback.
func (c *Client) On(name string, fn Handler) (*Callback, error) {
	cb := NewCallback(fn)
	return cb, c.r.registerCallback(name, cb, false)
}

// Once registers fn to run for the next delivery only.
func (c *Client) Once(name string, fn Handler) (*Callback, error) {
	cb := NewCallback(fn)
	return cb, c.r.registerCallback(name, cb, true)
}

// UnregisterCallback removes cb. An emptied record is detached and deleted.
func (c *Client) UnregisterCallback(name string, cb *Callback) {
	c.r.unregisterCallback(name, cb)
}

// UnregisterAllCallbacks detaches and deletes the record for name.
func (c *Client) UnregisterAllCallbacks(name string) {
	c.r.unregisterAllCallbacks(name)
}

// Send forwards straight to the transport regardless of listener state.
func (c *Client) Send(name string, args ...any) error {
	return c.t.Send(name, args...)
}

// Channel returns a snapshot of the record for name.
func (c *Client) Channel(name string) (ChannelInfo, bool) {
	return c.r.channel(name)
}

// ListEvents returns every record in registration order.
func (c *Client) ListEvents() []ChannelInfo {
	return c.r.list()
}
