package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanDeliver = "channel.deliver"
	SpanInvoke  = "ipc.invoke"
)

// Span attribute keys.
const (
	AttrChannelName      = "channel.name"
	AttrChannelSide      = "channel.side"
	AttrChannelCallbacks = "channel.callbacks"
	AttrCallbackID       = "callback.id"
	AttrPanicValue       = "panic.value"
	AttrErrorMessage     = "error.message"
)

// Span event names.
const (
	EventCallbackPanic = "callback.panic"
)

// StartDelivery opens the consumer span covering one fan-out on a channel.
// A nil tracer yields a non-recording span, so callers never branch on it.
func StartDelivery(t trace.Tracer, channel, side string, callbacks int) trace.Span {
	if t == nil {
		return trace.SpanFromContext(context.Background())
	}
	_, span := t.Start(context.Background(), SpanDeliver,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(AttrChannelName, channel),
			attribute.String(AttrChannelSide, side),
			attribute.Int(AttrChannelCallbacks, callbacks),
		))
	return span
}

// RecordCallbackPanic notes a recovered callback panic on the delivery span.
// The span status is left alone; one panicking callback does not fail the delivery.
func RecordCallbackPanic(span trace.Span, callbackID string, recovered any) {
	span.AddEvent(EventCallbackPanic, trace.WithAttributes(
		attribute.String(AttrCallbackID, callbackID),
		attribute.String(AttrPanicValue, fmt.Sprint(recovered)),
	))
}

// StartInvoke opens the server span around one invoke handler and returns
// the context the handler should run with.
func StartInvoke(ctx context.Context, t trace.Tracer, channel string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.Start(ctx, SpanInvoke,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String(AttrChannelName, channel)))
}

// RecordError marks span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
}
