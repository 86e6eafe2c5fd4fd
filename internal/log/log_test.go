package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat_Fields(t *testing.T) {
	ts := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)

	got := format(ts, LevelError, CatIPC, "send failed", "channel", "ping", "attempt", 2)
	require.Equal(t, "2025-12-06T10:45:00 [ERROR] [ipc] send failed channel=ping attempt=2\n", got)
}

func TestFormat_OrphanKey(t *testing.T) {
	ts := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)

	got := format(ts, LevelDebug, CatFile, "read", "name")
	require.Equal(t, "2025-12-06T10:45:00 [DEBUG] [file] read name=<missing>\n", got)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel("WARN"))
	require.Equal(t, LevelError, ParseLevel(" error "))
	require.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestInitWriter_MinLevelAndDisable(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	SetMinLevel(LevelWarn)
	Info(CatApp, "hidden")
	Warn(CatApp, "shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "[WARN] [app] shown")

	SetEnabled(false)
	Error(CatApp, "muted")
	require.NotContains(t, buf.String(), "muted")
}

func TestErrorErr_NilError(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	ErrorErr(CatStore, "boom", nil)
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestSubscribe_ReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Subscribe(ctx)
	require.NotNil(t, ch)

	Info(CatChannel, "started", "name", "ping")

	select {
	case entry := <-ch:
		require.Contains(t, entry.Payload, "[INFO] [channel] started name=ping")
	case <-time.After(time.Second):
		require.Fail(t, "no log entry published")
	}
}

func TestInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "erwt.log")

	cleanup, err := Init(path)
	require.NoError(t, err)

	Info(CatConfig, "loaded", "path", "config.yaml")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INFO] [config] loaded path=config.yaml")
}

func TestLogging_NoLoggerIsNoop(t *testing.T) {
	require.NotPanics(t, func() {
		Info(CatApp, "nobody listening")
	})
	require.Nil(t, Subscribe(context.Background()))
}
