package ipc

// Event accompanies every delivery.
type Event struct {
	// Name is the channel the message was sent on.
	Name string

	// ReturnValue is read back by Renderer.SendSync once all main
	// listeners have run.
	ReturnValue any

	reply func(name string, args ...any) error
}

// Reply sends a message back to the endpoint the delivery came from.
func (e *Event) Reply(name string, args ...any) error {
	if e.reply == nil {
		return ErrClosed
	}
	return e.reply(name, args...)
}

// SplitEvent separates the *Event a listener receives from the payload.
// ok is false when args does not start with an *Event.
func SplitEvent(args []any) (ev *Event, payload []any, ok bool) {
	if len(args) == 0 {
		return nil, nil, false
	}
	ev, ok = args[0].(*Event)
	if !ok {
		return nil, args, false
	}
	return ev, args[1:], true
}
