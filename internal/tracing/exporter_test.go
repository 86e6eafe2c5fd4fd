package tracing

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewFileExporter_CreatesParentDirectories(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "nested", "dir", "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	_, err = os.Stat(tracePath)
	require.NoError(t, err, "trace file should be created with parent dirs")

	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestFileExporter_WritesRecords(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stub := tracetest.SpanStub{
		Name:      SpanDeliver,
		SpanKind:  trace.SpanKindConsumer,
		StartTime: start,
		EndTime:   start.Add(250 * time.Millisecond),
		Attributes: []attribute.KeyValue{
			attribute.String(AttrChannelName, "app:ping"),
			attribute.Int(AttrChannelCallbacks, 2),
		},
		Events: []sdktrace.Event{{
			Name:       EventCallbackPanic,
			Time:       start.Add(time.Millisecond),
			Attributes: []attribute.KeyValue{attribute.String(AttrPanicValue, "boom")},
		}},
		Status: sdktrace.Status{Code: codes.Error, Description: "callback panicked"},
	}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	f, err := os.Open(tracePath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var rec SpanRecord
	require.NoError(t, jsoniter.Unmarshal(scanner.Bytes(), &rec))
	require.Equal(t, SpanDeliver, rec.Name)
	require.Equal(t, "consumer", rec.Kind)
	require.Equal(t, "ERROR", rec.Status)
	require.Equal(t, "callback panicked", rec.StatusMsg)
	require.InDelta(t, 250.0, rec.DurationMs, 0.001)
	require.Equal(t, "app:ping", rec.Attributes[AttrChannelName])
	require.Len(t, rec.Events, 1)
	require.Equal(t, EventCallbackPanic, rec.Events[0].Name)
	require.Equal(t, "boom", rec.Events[0].Attributes[AttrPanicValue])
	require.False(t, scanner.Scan(), "one span, one line")
}

func TestFileExporter_EmptyBatch(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestFileExporter_ExportAfterShutdown(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()), "second shutdown is a no-op")

	stub := tracetest.SpanStub{Name: "late"}
	err = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
	require.Error(t, err)
}
