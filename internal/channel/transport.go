package channel

import "errors"

// ErrNilTransport is returned when a registry is constructed without a transport handle.
var ErrNilTransport = errors.New("handle is undefined")

// Listener is a transport-level listener. It receives the positional
// arguments of one delivery as the transport produced them.
type Listener func(args ...any)

// Transport is the host messaging primitive a registry drives.
type Transport interface {
	OnMessage(name string, l Listener) error
	RemoveAllListeners(name string) error
}

// SendTransport is a Transport that can also send outbound messages.
type SendTransport interface {
	Transport
	Send(name string, args ...any) error
}
