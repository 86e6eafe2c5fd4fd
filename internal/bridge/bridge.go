// Package bridge exposes an allow-listed messaging surface to renderer code.
package bridge

import (
	"context"

	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/ipc"
	"github.com/zjrosen/erwt/internal/log"
)

// Bridge wraps an ipc.Renderer. Receive listeners get the payload only; the
// delivery event never crosses the bridge.
type Bridge struct {
	r     *ipc.Renderer
	allow allowList
}

var _ channel.SendTransport = (*Bridge)(nil)

// New returns a Bridge over r restricted to allow.
func New(r *ipc.Renderer, allow Allow) *Bridge {
	return &Bridge{r: r, allow: newAllowList(allow)}
}

// Allowed returns the sorted allow-lists.
func (b *Bridge) Allowed() Allow {
	return b.allow.allow()
}

// Send posts to the main side if name is on the send list.
func (b *Bridge) Send(name string, args ...any) error {
	if err := b.allow.checkSend(name); err != nil {
		log.Warn(log.CatIPC, "Blocked send", "name", name)
		return err
	}
	return b.r.Send(name, args...)
}

// SendSync sends and waits for the main side's return value.
func (b *Bridge) SendSync(name string, args ...any) (any, error) {
	if err := b.allow.checkSend(name); err != nil {
		return nil, err
	}
	return b.r.SendSync(name, args...)
}

// Invoke calls the main-side handler for name.
func (b *Bridge) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	if err := b.allow.checkSend(name); err != nil {
		return nil, err
	}
	return b.r.Invoke(ctx, name, args...)
}

// Receive adds a listener for name.
func (b *Bridge) Receive(name string, l channel.Listener) error {
	if err := b.allow.checkReceive(name); err != nil {
		log.Warn(log.CatIPC, "Blocked receive", "name", name)
		return err
	}
	return b.r.OnMessage(name, stripEvent(l))
}

// ReceiveOnce adds a listener removed after its first delivery.
func (b *Bridge) ReceiveOnce(name string, l channel.Listener) error {
	if err := b.allow.checkReceive(name); err != nil {
		return err
	}
	return b.r.Once(name, stripEvent(l))
}

// RemoveAll removes every listener for name.
func (b *Bridge) RemoveAll(name string) error {
	if err := b.allow.checkReceive(name); err != nil {
		return err
	}
	return b.r.RemoveAllListeners(name)
}

// OnMessage is Receive, so a Bridge can back a channel.Client.
func (b *Bridge) OnMessage(name string, l channel.Listener) error {
	return b.Receive(name, l)
}

// RemoveAllListeners is RemoveAll.
func (b *Bridge) RemoveAllListeners(name string) error {
	return b.RemoveAll(name)
}

func stripEvent(l channel.Listener) channel.Listener {
	return func(args ...any) {
		_, payload, _ := ipc.SplitEvent(args)
		l(payload...)
	}
}
