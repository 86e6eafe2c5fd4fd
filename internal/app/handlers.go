package app

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/config"
	"github.com/zjrosen/erwt/internal/ipc"
	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/xmljson"
)

// XML sources accepted on xml:convert.
const (
	XMLFromText = "text"
	XMLFromFile = "file"
)

func xmlCacheKey(name string) string { return "xml:" + name }

// registerBuiltins attaches the main-side handlers. Replies go back to the
// renderer on the paired channel; failures are reported on app:error and in
// error.log.
func (h *Host) registerBuiltins() error {
	if h.registered {
		return nil
	}
	builtins := []struct {
		name string
		fn   func(ev *ipc.Event, payload []any) error
	}{
		{config.ChannelPing, h.handlePing},
		{config.ChannelTempSet, h.handleTempSet},
		{config.ChannelTempGet, h.handleTempGet},
		{config.ChannelFileWrite, h.handleFileWrite},
		{config.ChannelFileRead, h.handleFileRead},
		{config.ChannelXMLConvert, h.handleXMLConvert},
	}
	for _, b := range builtins {
		if _, err := h.dispatcher.On(b.name, h.wrap(b.name, b.fn)); err != nil {
			return fmt.Errorf("registering %s: %w", b.name, err)
		}
	}

	m := h.bus.Main()
	m.Handle(config.ChannelFileRead, func(_ context.Context, args ...any) (any, error) {
		name, err := stringArg(args, 0, "name")
		if err != nil {
			return nil, err
		}
		return h.files.Read(name)
	})
	m.Handle(config.ChannelXMLConvert, func(ctx context.Context, args ...any) (any, error) {
		return h.convert(ctx, args)
	})
	h.registered = true
	return nil
}

// wrap turns a handler into a channel.Handler that splits the ipc event off
// the payload and reports errors.
func (h *Host) wrap(name string, fn func(ev *ipc.Event, payload []any) error) channel.Handler {
	return func(args ...any) {
		ev, payload, ok := ipc.SplitEvent(args)
		if !ok {
			log.Warn(log.CatApp, "Delivery without event", "name", name)
			return
		}
		if err := fn(ev, payload); err != nil {
			h.fail(ev, name, err)
		}
	}
}

func (h *Host) fail(ev *ipc.Event, name string, err error) {
	if werr := h.errs.LogError(err); werr != nil {
		log.ErrorErr(log.CatApp, "Error log unavailable", werr, "name", name)
	}
	if rerr := ev.Reply(config.ChannelError, name, err.Error()); rerr != nil {
		log.ErrorErr(log.CatApp, "Failed to report error", rerr, "name", name)
	}
}

func (h *Host) handlePing(ev *ipc.Event, payload []any) error {
	ev.ReturnValue = payload
	return ev.Reply(config.ChannelPong, payload...)
}

func (h *Host) handleTempSet(ev *ipc.Event, payload []any) error {
	key, err := stringArg(payload, 0, "key")
	if err != nil {
		return err
	}
	if len(payload) < 2 {
		return errors.Errorf("temp:set %q: missing value", key)
	}
	h.temp.Set(key, payload[1])
	ev.ReturnValue = true
	return nil
}

func (h *Host) handleTempGet(ev *ipc.Event, payload []any) error {
	key, err := stringArg(payload, 0, "key")
	if err != nil {
		return err
	}
	value, found := h.temp.Get(key)
	ev.ReturnValue = value
	return ev.Reply(config.ChannelTempValue, key, value, found)
}

func (h *Host) handleFileWrite(ev *ipc.Event, payload []any) error {
	name, err := stringArg(payload, 0, "name")
	if err != nil {
		return err
	}
	data, err := stringArg(payload, 1, "data")
	if err != nil {
		return err
	}
	if err := h.files.Write(name, data); err != nil {
		return errors.WithStack(err)
	}
	ev.ReturnValue = true
	return nil
}

func (h *Host) handleFileRead(ev *ipc.Event, payload []any) error {
	name, err := stringArg(payload, 0, "name")
	if err != nil {
		return err
	}
	data, err := h.files.Read(name)
	if err != nil {
		return errors.WithStack(err)
	}
	ev.ReturnValue = data
	return ev.Reply(config.ChannelFileContent, name, data)
}

func (h *Host) handleXMLConvert(ev *ipc.Event, payload []any) error {
	out, err := h.convert(context.Background(), payload)
	if err != nil {
		return err
	}
	ev.ReturnValue = out
	return ev.Reply(config.ChannelXMLJSON, payload[0], payload[1], out)
}

// convert takes (source, value) where source is XMLFromText or XMLFromFile
// and returns the JSON text of the converted document.
func (h *Host) convert(ctx context.Context, payload []any) (string, error) {
	source, err := stringArg(payload, 0, "source")
	if err != nil {
		return "", err
	}
	value, err := stringArg(payload, 1, "value")
	if err != nil {
		return "", err
	}

	var tree any
	switch source {
	case XMLFromText:
		tree, err = h.xml.FromString(value)
	case XMLFromFile:
		tree, err = h.xmlFiles.Get(ctx, xmlCacheKey(value), value, h.cfg.XML.CacheTTL)
	default:
		return "", errors.Errorf("xml:convert: unknown source %q", source)
	}
	if err != nil {
		return "", errors.WithStack(err)
	}

	out, err := xmljson.JSON(tree)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(out), nil
}

// convertFile reads and converts a user data file for the read-through cache.
func (h *Host) convertFile(_ context.Context, name string) (any, error) {
	path, err := h.files.Path(name)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatXML, "Converting file", "name", name)
	return h.xml.FromFile(path)
}

func stringArg(payload []any, i int, what string) (string, error) {
	if i >= len(payload) {
		return "", errors.Errorf("missing %s argument", what)
	}
	s, ok := payload[i].(string)
	if !ok {
		return "", errors.Errorf("%s argument must be a string, got %T", what, payload[i])
	}
	return s, nil
}
