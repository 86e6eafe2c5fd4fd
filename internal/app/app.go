// Package app wires the erwt helpers into a running host: one main-side
// dispatcher and one renderer-side client connected over the in-process bus.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zjrosen/erwt/internal/bridge"
	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/config"
	"github.com/zjrosen/erwt/internal/errlog"
	"github.com/zjrosen/erwt/internal/flags"
	"github.com/zjrosen/erwt/internal/ipc"
	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/paths"
	"github.com/zjrosen/erwt/internal/pubsub"
	"github.com/zjrosen/erwt/internal/tempstore"
	"github.com/zjrosen/erwt/internal/tracing"
	"github.com/zjrosen/erwt/internal/userdata"
	"github.com/zjrosen/erwt/internal/watcher"
	"github.com/zjrosen/erwt/internal/xmljson"
)

// Host owns every helper and the channels between them.
type Host struct {
	cfg   config.Config
	flags *flags.Registry

	files    *userdata.Store
	errs     *errlog.Logger
	temp     *tempstore.Store
	xml      *xmljson.Converter
	xmlCache *tempstore.Store
	xmlFiles *tempstore.ReadThrough[any, string]
	provider *tracing.Provider

	bus        *ipc.Bus
	dispatcher *channel.Dispatcher
	bridge     *bridge.Bridge
	client     *channel.Client
	lifecycle  *pubsub.Broker[channel.ChannelInfo]

	remote       *bridge.SocketBridge
	remoteClient *channel.Client

	watch *watcher.Watcher

	mu         sync.Mutex
	started    bool
	registered bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New builds a Host from cfg. Nothing runs until Start.
func New(cfg config.Config) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir, err := paths.UserDataDir(cfg.AppName, cfg.UserDataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving user data dir: %w", err)
	}
	files, err := userdata.New(dir)
	if err != nil {
		return nil, err
	}
	errs, err := errlog.New(files)
	if err != nil {
		return nil, err
	}

	h := &Host{
		cfg:       cfg,
		flags:     flags.New(cfg.Flags),
		files:     files,
		errs:      errs,
		temp:      tempstore.New(cfg.Temp.DefaultTTL, cfg.Temp.CleanupInterval),
		lifecycle: pubsub.NewBroker[channel.ChannelInfo](),
	}

	var xmlOpts []xmljson.Option
	if cfg.XML.KeepWhitespace {
		xmlOpts = append(xmlOpts, xmljson.KeepWhitespace())
	}
	h.xml = xmljson.New(xmlOpts...)
	h.xmlCache = tempstore.New(tempstore.NoExpiration, cfg.Temp.CleanupInterval)
	h.xmlFiles = tempstore.NewReadThrough(h.xmlCache, h.convertFile, cfg.XML.CacheTTL == 0)

	tcfg := cfg.Tracing
	if h.flags.Enabled(flags.FlagTraceDeliveries) && !tcfg.Enabled {
		tcfg.Enabled = true
		tcfg.Exporter = "none"
	}
	h.provider, err = tracing.NewProvider(tcfg)
	if err != nil {
		return nil, fmt.Errorf("creating tracing provider: %w", err)
	}

	h.bus = ipc.NewBus(ipc.WithTracer(h.provider.Tracer()))
	h.dispatcher, err = channel.NewDispatcher(h.bus.Main(),
		channel.WithTracer(h.provider.Tracer()),
		channel.WithPanicHandler(h.errs.Recover),
		channel.WithBroker(h.lifecycle),
	)
	if err != nil {
		h.bus.Close()
		return nil, err
	}

	h.bridge = bridge.New(h.bus.Renderer(), bridge.Allow{
		Send:    cfg.IPC.SendChannels,
		Receive: cfg.IPC.ReceiveChannels,
	})
	h.client, err = channel.NewClient(h.bridge, channel.WithPanicHandler(h.errs.Recover))
	if err != nil {
		h.bus.Close()
		return nil, err
	}

	if cfg.Watch.Enabled {
		wcfg := watcher.DefaultConfig(files.Dir())
		if cfg.Watch.Debounce > 0 {
			wcfg.DebounceDur = cfg.Watch.Debounce
		}
		wcfg.Ignore = []string{errlog.FileName}
		h.watch, err = watcher.New(wcfg)
		if err != nil {
			h.bus.Close()
			return nil, fmt.Errorf("creating watcher: %w", err)
		}
	}

	log.Debug(log.CatApp, "Host created", "dir", files.Dir(), "flags", h.flags.EnabledNames())
	return h, nil
}

// Files returns the user data store.
func (h *Host) Files() *userdata.Store { return h.files }

// Errors returns the error log.
func (h *Host) Errors() *errlog.Logger { return h.errs }

// Temp returns the scratch store.
func (h *Host) Temp() *tempstore.Store { return h.temp }

// Dispatcher returns the main-side registry.
func (h *Host) Dispatcher() *channel.Dispatcher { return h.dispatcher }

// Client returns the renderer-side registry, constrained by the IPC allow-lists.
func (h *Host) Client() *channel.Client { return h.client }

// Bridge returns the constrained renderer API the Client is built on.
func (h *Host) Bridge() *bridge.Bridge { return h.bridge }

// Remote returns the socket.io client registry, or nil when no remote is configured
// or Start has not connected it.
func (h *Host) Remote() *channel.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remoteClient
}

// ChannelEvents streams dispatcher channel lifecycle events until ctx is done.
func (h *Host) ChannelEvents(ctx context.Context, types ...pubsub.EventType) <-chan pubsub.Event[channel.ChannelInfo] {
	return h.lifecycle.Subscribe(ctx, types...)
}

// Start registers the built-in channels, starts the dispatcher and the
// background forwarders. It is an error to start twice.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return errors.New("host already started")
	}

	if err := h.registerBuiltins(); err != nil {
		return err
	}
	if err := h.dispatcher.Start(); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	if h.cfg.IPC.RemoteURL != "" {
		if err := h.connectRemote(runCtx); err != nil {
			cancel()
			h.dispatcher.Stop()
			return err
		}
	}

	if h.watch != nil {
		batches, err := h.watch.Start()
		if err != nil {
			cancel()
			h.dispatcher.Stop()
			return fmt.Errorf("starting watcher: %w", err)
		}
		h.wg.Add(1)
		go h.forwardChanges(runCtx, batches)
	}

	if h.flags.Enabled(flags.FlagForwardLogs) {
		if entries := log.Subscribe(runCtx); entries != nil {
			h.wg.Add(1)
			go h.forwardLogs(runCtx, entries)
		}
	}

	if h.flags.Enabled(flags.FlagListEvents) {
		for _, info := range h.dispatcher.ListEvents() {
			log.Info(log.CatApp, "Channel", "name", info.Name, "started", info.Started, "callbacks", len(info.Callbacks))
		}
	}

	h.started = true
	log.Info(log.CatApp, "Host started", "channels", len(h.dispatcher.ListEvents()))
	return nil
}

func (h *Host) connectRemote(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	remote, err := bridge.DialSocket(dialCtx, h.cfg.IPC.RemoteURL, h.cfg.IPC.RemoteNamespace, h.bridge.Allowed())
	if err != nil {
		return fmt.Errorf("connecting remote: %w", err)
	}
	client, err := channel.NewClient(remote, channel.WithPanicHandler(h.errs.Recover))
	if err != nil {
		remote.Close()
		return err
	}
	h.remote = remote
	h.remoteClient = client
	return nil
}

func (h *Host) forwardChanges(ctx context.Context, batches <-chan []string) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case names, ok := <-batches:
			if !ok {
				return
			}
			for _, name := range names {
				h.xmlCache.Remove(xmlCacheKey(name))
			}
			if err := h.bus.Main().Send(config.ChannelUserData, names); err != nil {
				log.ErrorErr(log.CatApp, "Failed to forward change batch", err)
			}
		}
	}
}

func (h *Host) forwardLogs(ctx context.Context, entries <-chan log.Entry) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			// Bus sends are not logged, so forwarding cannot feed itself.
			_ = h.bus.Main().Send(config.ChannelLog, e.Payload)
		}
	}
}

// Close stops the host. It is safe to call more than once and without Start.
func (h *Host) Close() error {
	var shutdownErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		if h.cancel != nil {
			h.cancel()
		}
		h.mu.Unlock()

		if h.watch != nil {
			if err := h.watch.Stop(); err != nil {
				log.ErrorErr(log.CatApp, "Failed to stop watcher", err)
			}
		}
		h.wg.Wait()

		h.dispatcher.Stop()
		if h.remote != nil {
			h.remote.Close()
		}
		h.bus.Close()
		h.lifecycle.Close()
		h.temp.Clear()
		h.xmlCache.Clear()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr = h.provider.Shutdown(ctx)
		log.Info(log.CatApp, "Host closed")
	})
	return shutdownErr
}
