package testutil

import (
	"slices"
	"sync"

	"github.com/zjrosen/erwt/internal/channel"
)

// SentMessage is one outbound message recorded by Transport.
type SentMessage struct {
	Name string
	Args []any
}

// Transport is an in-memory channel.SendTransport that records every call.
// Deliver runs listeners synchronously on the calling goroutine.
type Transport struct {
	mu        sync.Mutex
	listeners map[string][]channel.Listener
	history   map[string][]channel.Listener
	attaches  map[string]int
	detaches  map[string]int
	failures  map[string]error
	sent      []SentMessage
}

// NewTransport returns an empty recording transport.
func NewTransport() *Transport {
	return &Transport{
		listeners: make(map[string][]channel.Listener),
		history:   make(map[string][]channel.Listener),
		attaches:  make(map[string]int),
		detaches:  make(map[string]int),
		failures:  make(map[string]error),
	}
}

// FailOn makes OnMessage(name) return err. A nil err clears the failure.
func (t *Transport) FailOn(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, name)
		return
	}
	t.failures[name] = err
}

func (t *Transport) OnMessage(name string, l channel.Listener) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failures[name]; err != nil {
		return err
	}
	t.listeners[name] = append(t.listeners[name], l)
	t.history[name] = append(t.history[name], l)
	t.attaches[name]++
	return nil
}

func (t *Transport) RemoveAllListeners(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, name)
	t.detaches[name]++
	return nil
}

func (t *Transport) Send(name string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, SentMessage{Name: name, Args: slices.Clone(args)})
	return nil
}

// Deliver invokes every listener attached to name with args.
func (t *Transport) Deliver(name string, args ...any) {
	t.mu.Lock()
	ls := slices.Clone(t.listeners[name])
	t.mu.Unlock()
	for _, l := range ls {
		l(args...)
	}
}

// Listeners returns the number of listeners currently attached to name.
func (t *Transport) Listeners(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[name])
}

// History returns every listener ever attached to name, including removed ones.
func (t *Transport) History(name string) []channel.Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.history[name])
}

// Attached returns the sorted names that currently have listeners.
func (t *Transport) Attached() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.listeners))
	for name, ls := range t.listeners {
		if len(ls) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Attaches returns how many times a listener was attached to name.
func (t *Transport) Attaches(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attaches[name]
}

// Detaches returns how many times RemoveAllListeners was called for name.
func (t *Transport) Detaches(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detaches[name]
}

// Sent returns a copy of the outbound messages in send order.
func (t *Transport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sent)
}
