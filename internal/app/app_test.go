package app

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/erwt/internal/config"
	"github.com/zjrosen/erwt/internal/errlog"
	"github.com/zjrosen/erwt/internal/flags"
	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/pubsub"
	"github.com/zjrosen/erwt/internal/testutil"
)

const waitFor = 2 * time.Second

func newHost(t *testing.T, mutate func(*config.Config)) *Host {
	t.Helper()
	cfg := config.Defaults()
	cfg.UserDataDir = t.TempDir()
	cfg.Watch.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func startHost(t *testing.T, mutate func(*config.Config)) *Host {
	t.Helper()
	h := newHost(t, mutate)
	require.NoError(t, h.Start(context.Background()))
	return h
}

// inbox records renderer-side deliveries.
type inbox struct {
	mu   sync.Mutex
	msgs [][]any
}

func (b *inbox) add(args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, args)
}

func (b *inbox) all() [][]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]any(nil), b.msgs...)
}

func (b *inbox) waitLen(t *testing.T, n int) [][]any {
	t.Helper()
	require.Eventually(t, func() bool { return len(b.all()) >= n }, waitFor, 5*time.Millisecond)
	return b.all()
}

func listen(t *testing.T, h *Host, name string) *inbox {
	t.Helper()
	box := &inbox{}
	_, err := h.Client().On(name, box.add)
	require.NoError(t, err)
	return box
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.AppName = ""
	_, err := New(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config")
}

func TestStart_RegistersBuiltins(t *testing.T) {
	h := startHost(t, nil)

	var names []string
	for _, info := range h.Dispatcher().ListEvents() {
		require.True(t, info.Started, info.Name)
		require.Len(t, info.Callbacks, 1, info.Name)
		names = append(names, info.Name)
	}
	require.Equal(t, config.DefaultSendChannels(), names)
}

func TestStart_Twice(t *testing.T) {
	h := startHost(t, nil)
	err := h.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "already started")
}

func TestHost_PingEchoes(t *testing.T) {
	h := startHost(t, nil)
	pongs := listen(t, h, config.ChannelPong)

	require.NoError(t, h.Client().Send(config.ChannelPing, "hello", 42))

	got := pongs.waitLen(t, 1)
	require.Equal(t, []any{"hello", 42}, got[0])
}

func TestHost_TempSetAndGet(t *testing.T) {
	h := startHost(t, nil)
	values := listen(t, h, config.ChannelTempValue)

	ok, err := h.Bridge().SendSync(config.ChannelTempSet, "answer", 42)
	require.NoError(t, err)
	require.Equal(t, true, ok)

	v, found := h.Temp().Get("answer")
	require.True(t, found)
	require.Equal(t, 42, v)

	require.NoError(t, h.Client().Send(config.ChannelTempGet, "answer"))
	require.NoError(t, h.Client().Send(config.ChannelTempGet, "missing"))

	got := values.waitLen(t, 2)
	require.Equal(t, []any{"answer", 42, true}, got[0])
	require.Equal(t, []any{"missing", nil, false}, got[1])
}

func TestHost_FileWriteThenRead(t *testing.T) {
	h := startHost(t, nil)
	contents := listen(t, h, config.ChannelFileContent)

	ok, err := h.Bridge().SendSync(config.ChannelFileWrite, "notes/today.txt", "  first line \n")
	require.NoError(t, err)
	require.Equal(t, true, ok)

	require.NoError(t, h.Client().Send(config.ChannelFileRead, "notes/today.txt"))
	got := contents.waitLen(t, 1)
	require.Equal(t, []any{"notes/today.txt", "first line"}, got[0])

	data, err := h.Bridge().Invoke(context.Background(), config.ChannelFileRead, "notes/today.txt")
	require.NoError(t, err)
	require.Equal(t, "first line", data)
}

func TestHost_FailureReportsAndLogs(t *testing.T) {
	h := startHost(t, nil)
	failures := listen(t, h, config.ChannelError)

	require.NoError(t, h.Client().Send(config.ChannelFileRead, "missing.txt"))

	got := failures.waitLen(t, 1)
	require.Equal(t, config.ChannelFileRead, got[0][0])
	require.Contains(t, got[0][1], "missing.txt")

	entry, err := h.Files().Read(errlog.FileName)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(entry, "Error in "), entry)
	require.Contains(t, entry, "handlers.go")
}

func TestHost_BadArgumentsReported(t *testing.T) {
	h := startHost(t, nil)
	failures := listen(t, h, config.ChannelError)

	require.NoError(t, h.Client().Send(config.ChannelTempGet, 7))

	got := failures.waitLen(t, 1)
	require.Equal(t, config.ChannelTempGet, got[0][0])
	require.Contains(t, got[0][1], "key argument must be a string")
}

func TestHost_XMLConvertText(t *testing.T) {
	h := startHost(t, nil)
	out := listen(t, h, config.ChannelXMLJSON)

	require.NoError(t, h.Client().Send(config.ChannelXMLConvert, XMLFromText, `<a x="1">hi</a>`))

	got := out.waitLen(t, 1)
	require.Equal(t, XMLFromText, got[0][0])
	require.JSONEq(t, `{"a":{"@attributes":{"x":"1"},"#text":"hi"}}`, got[0][2].(string))
}

func TestHost_XMLConvertFileIsCached(t *testing.T) {
	dir := testutil.NewDirBuilder(t).WithStandardFiles().Build()
	h := startHost(t, func(cfg *config.Config) { cfg.UserDataDir = dir })

	first, err := h.Bridge().Invoke(context.Background(), config.ChannelXMLConvert, XMLFromFile, "catalog.xml")
	require.NoError(t, err)
	require.Contains(t, first, `"owner":{"#text":"Ada"}`)

	require.NoError(t, h.Files().Write("catalog.xml", "<catalog/>"))
	cached, err := h.Bridge().Invoke(context.Background(), config.ChannelXMLConvert, XMLFromFile, "catalog.xml")
	require.NoError(t, err)
	require.Equal(t, first, cached)
}

func TestHost_XMLConvertUnknownSource(t *testing.T) {
	h := startHost(t, nil)

	_, err := h.Bridge().Invoke(context.Background(), config.ChannelXMLConvert, "url", "http://example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown source "url"`)
}

func TestHost_BridgeBlocksUnlistedChannels(t *testing.T) {
	h := startHost(t, func(cfg *config.Config) {
		cfg.IPC.SendChannels = []string{config.ChannelPing}
	})

	require.Error(t, h.Client().Send(config.ChannelFileWrite, "a.txt", "x"))
	_, err := h.Client().On("not-listed", func(...any) {})
	require.Error(t, err)
}

func TestHost_CallbackPanicLogged(t *testing.T) {
	h := startHost(t, func(cfg *config.Config) {
		cfg.IPC.SendChannels = append(cfg.IPC.SendChannels, "boom")
	})
	_, err := h.Dispatcher().On("boom", func(...any) { panic("kaboom") })
	require.NoError(t, err)
	pongs := listen(t, h, config.ChannelPong)

	require.NoError(t, h.Client().Send("boom"))
	require.Eventually(t, func() bool { return h.Files().Exists(errlog.FileName) }, waitFor, 5*time.Millisecond)

	entry, err := h.Files().Read(errlog.FileName)
	require.NoError(t, err)
	require.Contains(t, entry, "kaboom")

	require.NoError(t, h.Client().Send(config.ChannelPing, "still alive"))
	pongs.waitLen(t, 1)
}

func TestHost_ForwardsUserDataChanges(t *testing.T) {
	h := startHost(t, func(cfg *config.Config) {
		cfg.Watch.Enabled = true
		cfg.Watch.Debounce = 50 * time.Millisecond
	})
	changes := listen(t, h, config.ChannelUserData)

	require.NoError(t, h.Files().Write("a.txt", "x"))

	got := changes.waitLen(t, 1)
	require.Equal(t, []string{"a.txt"}, got[0][0])
}

func TestHost_ForwardsLogsWhenFlagged(t *testing.T) {
	cleanup := log.InitWriter(io.Discard)
	t.Cleanup(cleanup)

	h := startHost(t, func(cfg *config.Config) {
		cfg.Flags = map[string]bool{flags.FlagForwardLogs: true}
	})
	lines := listen(t, h, config.ChannelLog)

	log.Info(log.CatApp, "forward me")

	require.Eventually(t, func() bool {
		for _, msg := range lines.all() {
			if s, ok := msg[0].(string); ok && strings.Contains(s, "forward me") {
				return true
			}
		}
		return false
	}, waitFor, 5*time.Millisecond)
}

func TestHost_ChannelEvents(t *testing.T) {
	h := newHost(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := h.ChannelEvents(ctx, pubsub.StartedEvent)

	require.NoError(t, h.Start(context.Background()))

	select {
	case ev := <-events:
		require.Equal(t, pubsub.StartedEvent, ev.Type)
		require.Equal(t, config.ChannelPing, ev.Payload.Name)
	case <-time.After(waitFor):
		t.Fatal("no started event")
	}
}

func TestHost_CloseIsIdempotent(t *testing.T) {
	h := newHost(t, nil)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestHost_CloseStopsDispatcher(t *testing.T) {
	h := startHost(t, nil)
	require.NoError(t, h.Close())

	for _, info := range h.Dispatcher().ListEvents() {
		require.False(t, info.Started, info.Name)
	}
	require.Error(t, h.Client().Send(config.ChannelPing))
}
