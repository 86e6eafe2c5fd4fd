package bridge

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/log"
)

const dialTimeout = 15 * time.Second

// Conn is the subset of a socket.io client socket a SocketBridge uses.
type Conn interface {
	On(types.EventName, ...types.Listener) error
	Once(types.EventName, ...types.Listener) error
	RemoveAllListeners(types.EventName) bool
	Emit(ev string, args ...any) error
}

// SocketBridge is the allow-listed surface over a socket.io connection.
type SocketBridge struct {
	conn  Conn
	allow allowList
	close func()
}

var _ channel.SendTransport = (*SocketBridge)(nil)

// NewSocketBridge wraps an already connected socket.
func NewSocketBridge(conn Conn, allow Allow) *SocketBridge {
	return &SocketBridge{conn: conn, allow: newAllowList(allow), close: func() {}}
}

// DialSocket connects to a socket.io server over websocket and waits for the
// namespace connect.
func DialSocket(ctx context.Context, rawURL, namespace string, allow Allow) (*SocketBridge, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("remote url %q needs a scheme and host", rawURL)
	}
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	connected := make(chan error, 1)
	_ = io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	_ = io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	log.Info(log.CatIPC, "Dialing remote", "url", baseURL, "namespace", namespace)
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("dial %s: %w", baseURL, ctx.Err())
	case <-time.After(dialTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", dialTimeout)
	}

	log.Info(log.CatIPC, "Connected to remote", "sid", io.Id())
	b := NewSocketBridge(io, allow)
	b.close = func() { io.Disconnect() }
	return b, nil
}

// Allowed returns the sorted allow-lists.
func (b *SocketBridge) Allowed() Allow {
	return b.allow.allow()
}

// Send emits name on the socket if it is on the send list.
func (b *SocketBridge) Send(name string, args ...any) error {
	if err := b.allow.checkSend(name); err != nil {
		log.Warn(log.CatIPC, "Blocked remote send", "name", name)
		return err
	}
	return b.conn.Emit(name, args...)
}

// Receive adds a socket listener for name.
func (b *SocketBridge) Receive(name string, l channel.Listener) error {
	if err := b.allow.checkReceive(name); err != nil {
		return err
	}
	return b.conn.On(types.EventName(name), types.Listener(l))
}

// ReceiveOnce adds a socket listener removed after its first event.
func (b *SocketBridge) ReceiveOnce(name string, l channel.Listener) error {
	if err := b.allow.checkReceive(name); err != nil {
		return err
	}
	return b.conn.Once(types.EventName(name), types.Listener(l))
}

// RemoveAll removes every socket listener for name.
func (b *SocketBridge) RemoveAll(name string) error {
	if err := b.allow.checkReceive(name); err != nil {
		return err
	}
	b.conn.RemoveAllListeners(types.EventName(name))
	return nil
}

// OnMessage is Receive, so a SocketBridge can back a channel.Client.
func (b *SocketBridge) OnMessage(name string, l channel.Listener) error {
	return b.Receive(name, l)
}

// RemoveAllListeners is RemoveAll.
func (b *SocketBridge) RemoveAllListeners(name string) error {
	return b.RemoveAll(name)
}

// Close disconnects a dialed socket.
func (b *SocketBridge) Close() {
	b.close()
}
