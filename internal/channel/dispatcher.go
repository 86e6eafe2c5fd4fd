package channel

// Dispatcher is the privileged-side registry. Emptied channel records are kept
// (unstarted) for reuse, and every listener can be suspended with Stop and
// resumed with Start.
//
// Callbacks receive exactly what the transport delivers: for the in-process
// bus that is the delivery *ipc.Event followed by the payload.
type Dispatcher struct {
	r *registry
}

// NewDispatcher creates the dispatcher-side registry over t.
// A nil transport fails with ErrNilTransport.
func NewDispatcher(t Transport, opts ...Option) (*Dispatcher, error) {
	if isNilHandle(t) {
		return nil, ErrNilTransport
	}
	return &Dispatcher{r: newRegistry("dispatcher", t, true, opts...)}, nil
}

// RegisterEvent creates an empty, unstarted record for name if absent.
func (d *Dispatcher) RegisterEvent(name string) {
	d.r.registerEvent(name)
}

// RegisterCallback adds cb to name and starts the channel if needed.
// Registering a callback that is already present is a no-op.
func (d *Dispatcher) RegisterCallback(name string, cb *Callback, once bool) error {
	return d.r.registerCallback(name, cb, once)
}

// On registers fn on name and returns its Callback for later removal.
func (d *Dispatcher) On(name string, fn Handler) (*Callback, error) {
	cb := NewCallback(fn)
	return cb, d.r.registerCallback(name, cb, false)
}

// Once registers fn on name for a single delivery.
func (d *Dispatcher) Once(name string, fn Handler) (*Callback, error) {
	cb := NewCallback(fn)
	return cb, d.r.registerCallback(name, cb, true)
}

// UnregisterCallback removes cb from name; the listener is detached when the
// channel becomes empty but the record is kept.
func (d *Dispatcher) UnregisterCallback(name string, cb *Callback) {
	d.r.unregisterCallback(name, cb)
}

// UnregisterAllCallbacks clears name and detaches its listener.
func (d *Dispatcher) UnregisterAllCallbacks(name string) {
	d.r.unregisterAllCallbacks(name)
}

// Start attaches the listener of every channel that has callbacks.
func (d *Dispatcher) Start() error {
	return d.r.start()
}

// Stop detaches every listener without clearing callbacks.
func (d *Dispatcher) Stop() {
	d.r.stop()
}

// Channel returns a snapshot of the record for name.
func (d *Dispatcher) Channel(name string) (ChannelInfo, bool) {
	return d.r.channel(name)
}

// ListEvents returns every record in registration order.
func (d *Dispatcher) ListEvents() []ChannelInfo {
	return d.r.list()
}
