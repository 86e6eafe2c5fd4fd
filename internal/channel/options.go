package channel

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/erwt/internal/pubsub"
)

// PanicHandler is told about a callback that panicked during fan-out.
type PanicHandler func(name string, cb *Callback, recovered any)

// Option configures a registry.
type Option func(*registry)

// WithTracer records one span per delivery.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *registry) {
		r.tracer = tracer
	}
}

// WithPanicHandler installs a handler for recovered callback panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(r *registry) {
		r.onPanic = h
	}
}

// WithBroker publishes channel lifecycle events: created, started, updated
// (callback list changed while attached), stopped and deleted.
func WithBroker(b pubsub.Publisher[ChannelInfo]) Option {
	return func(r *registry) {
		if !isNilHandle(b) {
			r.broker = b
		}
	}
}
