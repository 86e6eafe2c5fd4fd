package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/zishang520/engine.io/v2/events"

	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/tracing"
)

var (
	// ErrClosed is returned by sends on a closed bus.
	ErrClosed = errors.New("ipc: bus closed")

	// ErrNoHandler is returned by Invoke when no handler is registered.
	ErrNoHandler = errors.New("ipc: no handler registered")
)

// InvokeHandler answers a Renderer.Invoke request on the main side.
type InvokeHandler func(ctx context.Context, args ...any) (any, error)

// Option configures a Bus.
type Option func(*Bus)

// WithTracer records a span around every handled invocation.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) {
		b.tracer = t
	}
}

// Bus connects one Main endpoint to one Renderer endpoint.
type Bus struct {
	toMain     *lane
	toRenderer *lane

	mu       sync.RWMutex
	handlers map[string]InvokeHandler

	tracer trace.Tracer

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	main     *Main
	renderer *Renderer
}

// NewBus starts both delivery loops.
func NewBus(opts ...Option) *Bus {
	done := make(chan struct{})
	b := &Bus{
		toMain:     newLane("main", done),
		toRenderer: newLane("renderer", done),
		handlers:   make(map[string]InvokeHandler),
		done:       done,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.main = &Main{b: b}
	b.renderer = &Renderer{b: b}

	b.wg.Add(2)
	go b.toMain.run(&b.wg)
	go b.toRenderer.run(&b.wg)
	return b
}

// Main returns the privileged endpoint.
func (b *Bus) Main() *Main { return b.main }

// Renderer returns the constrained endpoint.
func (b *Bus) Renderer() *Renderer { return b.renderer }

// Close stops both delivery loops. Pending deliveries are dropped.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.toMain.emitter.Clear()
		b.toRenderer.emitter.Clear()
		log.Debug(log.CatIPC, "Bus closed")
	})
}

func (b *Bus) sendToMain(name string, args []any, after func()) (*Event, error) {
	ev := &Event{Name: name}
	ev.reply = func(reply string, replyArgs ...any) error {
		_, err := b.sendToRenderer(reply, replyArgs)
		return err
	}
	return ev, b.toMain.emit(name, ev, args, after)
}

func (b *Bus) sendToRenderer(name string, args []any) (*Event, error) {
	ev := &Event{Name: name}
	ev.reply = func(reply string, replyArgs ...any) error {
		_, err := b.sendToMain(reply, replyArgs, nil)
		return err
	}
	return ev, b.toRenderer.emit(name, ev, args, nil)
}

func (b *Bus) handler(name string) (InvokeHandler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[name]
	return h, ok
}

type invokeResult struct {
	value any
	err   error
}

func (b *Bus) invoke(ctx context.Context, name string, args []any) (any, error) {
	if _, ok := b.handler(name); !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoHandler, name)
	}

	result := make(chan invokeResult, 1)
	err := b.toMain.post(func() {
		h, ok := b.handler(name)
		if !ok {
			result <- invokeResult{err: fmt.Errorf("%w for %q", ErrNoHandler, name)}
			return
		}
		result <- b.runHandler(ctx, name, h, args)
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	}
}

func (b *Bus) runHandler(ctx context.Context, name string, h InvokeHandler, args []any) (res invokeResult) {
	ctx, span := tracing.StartInvoke(ctx, b.tracer, name)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = invokeResult{err: fmt.Errorf("handler for %q panicked: %v", name, r)}
		}
		if res.err != nil {
			log.ErrorErr(log.CatIPC, "Invoke failed", res.err, "name", name)
		}
		tracing.RecordError(span, res.err)
	}()

	if err := ctx.Err(); err != nil {
		return invokeResult{err: err}
	}
	v, err := h(ctx, args...)
	return invokeResult{value: v, err: err}
}

// Main is the privileged endpoint. Its OnMessage listeners receive messages
// sent by the Renderer.
type Main struct {
	b *Bus
}

// OnMessage adds a listener for messages sent by the renderer on name.
func (m *Main) OnMessage(name string, l channel.Listener) error {
	return m.b.toMain.emitter.On(events.EventName(name), events.Listener(l))
}

// RemoveAllListeners removes every listener for name.
func (m *Main) RemoveAllListeners(name string) error {
	m.b.toMain.emitter.RemoveAllListeners(events.EventName(name))
	return nil
}

// Send posts a message to the renderer.
func (m *Main) Send(name string, args ...any) error {
	_, err := m.b.sendToRenderer(name, args)
	return err
}

// Handle registers the responder for Renderer.Invoke on name, replacing any
// previous one.
func (m *Main) Handle(name string, h InvokeHandler) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.handlers[name] = h
}

// RemoveHandler removes the responder for name.
func (m *Main) RemoveHandler(name string) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	delete(m.b.handlers, name)
}

// ListenerCount returns the listeners attached to name.
func (m *Main) ListenerCount(name string) int {
	return m.b.toMain.emitter.ListenerCount(events.EventName(name))
}

// Renderer is the constrained endpoint.
type Renderer struct {
	b *Bus
}

// OnMessage adds a listener for messages sent by main on name.
func (r *Renderer) OnMessage(name string, l channel.Listener) error {
	return r.b.toRenderer.emitter.On(events.EventName(name), events.Listener(l))
}

// Once adds a listener that is removed after its first delivery.
func (r *Renderer) Once(name string, l channel.Listener) error {
	return r.b.toRenderer.emitter.Once(events.EventName(name), events.Listener(l))
}

// RemoveAllListeners removes every listener for name.
func (r *Renderer) RemoveAllListeners(name string) error {
	r.b.toRenderer.emitter.RemoveAllListeners(events.EventName(name))
	return nil
}

// Send posts a message to main.
func (r *Renderer) Send(name string, args ...any) error {
	_, err := r.b.sendToMain(name, args, nil)
	return err
}

// SendSync posts a message to main and waits until every main listener has
// run, returning the Event's ReturnValue.
func (r *Renderer) SendSync(name string, args ...any) (any, error) {
	ran := make(chan struct{})
	ev, err := r.b.sendToMain(name, args, func() { close(ran) })
	if err != nil {
		return nil, err
	}
	select {
	case <-ran:
		return ev.ReturnValue, nil
	case <-r.b.done:
		return nil, ErrClosed
	}
}

// Invoke calls the main-side handler for name and waits for its result.
func (r *Renderer) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	return r.b.invoke(ctx, name, args)
}

// ListenerCount returns the listeners attached to name.
func (r *Renderer) ListenerCount(name string) int {
	return r.b.toRenderer.emitter.ListenerCount(events.EventName(name))
}
