package channel

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/pubsub"
	"github.com/zjrosen/erwt/internal/tracing"
)

type entry struct {
	cb    *Callback
	once  bool
	fired atomic.Bool
}

type record struct {
	name      string
	callbacks []*entry
	started   bool
}

func (rec *record) indexOf(cb *Callback) int {
	return slices.IndexFunc(rec.callbacks, func(e *entry) bool { return e.cb == cb })
}

func (rec *record) info() ChannelInfo {
	ids := make([]string, len(rec.callbacks))
	for i, e := range rec.callbacks {
		ids[i] = e.cb.ID
	}
	return ChannelInfo{Name: rec.name, Started: rec.started, Callbacks: ids}
}

// registry is the bookkeeping shared by Dispatcher and Client.
// The mutex is never held while a callback runs.
type registry struct {
	mu        sync.Mutex
	side      string
	transport Transport
	records   map[string]*record
	order     []string
	keepEmpty bool

	tracer  trace.Tracer
	onPanic PanicHandler
	broker  pubsub.Publisher[ChannelInfo]
}

func newRegistry(side string, t Transport, keepEmpty bool, opts ...Option) *registry {
	r := &registry{
		side:      side,
		transport: t,
		records:   make(map[string]*record),
		keepEmpty: keepEmpty,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func isNilHandle(t any) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// ensure returns the record for name, creating it when absent. Caller holds mu.
func (r *registry) ensure(name string) (*record, bool) {
	if rec, ok := r.records[name]; ok {
		return rec, false
	}
	rec := &record{name: name}
	r.records[name] = rec
	r.order = append(r.order, name)
	r.publish(pubsub.CreatedEvent, rec)
	return rec, true
}

// drop removes the record from the index. Caller holds mu.
func (r *registry) drop(rec *record) {
	delete(r.records, rec.name)
	if i := slices.Index(r.order, rec.name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.publish(pubsub.DeletedEvent, rec)
}

func (r *registry) publish(t pubsub.EventType, rec *record) {
	if r.broker != nil {
		r.broker.Publish(t, rec.info())
	}
}

// attach installs the single transport listener for rec. Caller holds mu.
func (r *registry) attach(rec *record) error {
	if rec.started {
		return nil
	}
	name := rec.name
	if err := r.transport.OnMessage(name, func(args ...any) { r.deliver(name, args) }); err != nil {
		return fmt.Errorf("attaching listener for %q: %w", name, err)
	}
	rec.started = true
	log.Debug(log.CatChannel, "Channel started", "side", r.side, "name", name)
	r.publish(pubsub.StartedEvent, rec)
	return nil
}

// detach removes the transport listener for rec. Caller holds mu.
func (r *registry) detach(rec *record) {
	if !rec.started {
		return
	}
	rec.started = false
	if err := r.transport.RemoveAllListeners(rec.name); err != nil {
		log.ErrorErr(log.CatChannel, "Failed to remove listeners", err, "side", r.side, "name", rec.name)
	}
	log.Debug(log.CatChannel, "Channel stopped", "side", r.side, "name", rec.name)
	r.publish(pubsub.StoppedEvent, rec)
}

func (r *registry) registerEvent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(name)
}

func (r *registry) unregisterEvent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return
	}
	rec.callbacks = nil
	r.detach(rec)
	r.drop(rec)
}

func (r *registry) registerCallback(name string, cb *Callback, once bool) error {
	if cb == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, created := r.ensure(name)
	if rec.indexOf(cb) >= 0 {
		return nil
	}
	rec.callbacks = append(rec.callbacks, &entry{cb: cb, once: once})

	if rec.started {
		r.publish(pubsub.UpdatedEvent, rec)
		return nil
	}
	if err := r.attach(rec); err != nil {
		rec.callbacks = rec.callbacks[:len(rec.callbacks)-1]
		if created && !r.keepEmpty {
			r.drop(rec)
		}
		return err
	}
	return nil
}

func (r *registry) unregisterCallback(name string, cb *Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return
	}
	i := rec.indexOf(cb)
	if i < 0 {
		return
	}
	rec.callbacks = slices.Delete(rec.callbacks, i, i+1)

	if len(rec.callbacks) > 0 {
		if rec.started {
			r.publish(pubsub.UpdatedEvent, rec)
		}
		return
	}
	r.detach(rec)
	if !r.keepEmpty {
		r.drop(rec)
	}
}

func (r *registry) unregisterAllCallbacks(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return
	}
	rec.callbacks = nil
	r.detach(rec)
	if !r.keepEmpty {
		r.drop(rec)
	}
}

// start attaches every record that has callbacks. All records are attempted;
// the first attach error is returned.
func (r *registry) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, name := range r.order {
		rec := r.records[name]
		if len(rec.callbacks) == 0 {
			continue
		}
		if err := r.attach(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// stop detaches every record but keeps callback lists.
func (r *registry) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		r.detach(r.records[name])
	}
}

func (r *registry) channel(name string) (ChannelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return ChannelInfo{}, false
	}
	return rec.info(), true
}

func (r *registry) list() []ChannelInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ChannelInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.records[name].info())
	}
	return out
}

// deliver fans one message out to the callbacks registered when it arrived.
func (r *registry) deliver(name string, args []any) {
	r.mu.Lock()
	rec, ok := r.records[name]
	if !ok || !rec.started {
		r.mu.Unlock()
		return
	}
	snapshot := slices.Clone(rec.callbacks)
	r.mu.Unlock()

	span := tracing.StartDelivery(r.tracer, name, r.side, len(snapshot))
	defer span.End()

	for _, e := range snapshot {
		if e.once && !e.fired.CompareAndSwap(false, true) {
			continue
		}
		r.invoke(name, e.cb, args, span)
		if e.once {
			r.unregisterCallback(name, e.cb)
		}
	}
}

// invoke runs one callback; a panic is recovered so the remaining callbacks still run.
func (r *registry) invoke(name string, cb *Callback, args []any, span trace.Span) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		log.Error(log.CatChannel, "Callback panicked", "side", r.side, "name", name, "callback", cb.ID, "panic", rec)
		tracing.RecordCallbackPanic(span, cb.ID, rec)
		if r.onPanic != nil {
			r.onPanic(name, cb, rec)
		}
	}()
	cb.invoke(args)
}
