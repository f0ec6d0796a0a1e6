package observable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/observables/internal/tracing"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_UpdateSpans(t *testing.T) {
	rec, tp := newRecordingTracer(t)
	c := New(Value{"a": 1}, WithName("cart"), WithTracer(tp.Tracer("test")))
	c.Subscribe(func(Value) {}, WithDependencies("a"))
	ctx := context.Background()

	require.NoError(t, c.Next(ctx, Replace(Value{"a": 2})))
	require.NoError(t, c.Overwrite(ctx, Replace(Value{"b": 1})))
	c.Reset(ctx)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	require.Equal(t, tracing.SpanNext, spans[0].Name())
	require.Equal(t, tracing.SpanOverwrite, spans[1].Name())
	require.Equal(t, tracing.SpanReset, spans[2].Name())

	next := attrs(spans[0])
	require.Equal(t, "cart", next[tracing.AttrStateName].AsString())
	require.Equal(t, []string{"a"}, next[tracing.AttrChangeKeys].AsStringSlice())
	require.Equal(t, int64(1), next[tracing.AttrNotified].AsInt64())
	require.False(t, next[tracing.AttrOverwrite].AsBool())
	require.NotEmpty(t, next[tracing.AttrChangeID].AsString())

	require.True(t, attrs(spans[1])[tracing.AttrOverwrite].AsBool())
}

func TestTracing_RejectedValueMarksError(t *testing.T) {
	rec, tp := newRecordingTracer(t)
	c := New(nil, WithTracer(tp.Tracer("test")))

	require.Error(t, c.Next(context.Background(), Replace("nope")))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	require.Equal(t, tracing.EventValueRejected, spans[0].Events()[0].Name)
}

func TestTracing_PanicRecordedAsEvent(t *testing.T) {
	rec, tp := newRecordingTracer(t)
	c := New(nil, WithTracer(tp.Tracer("test")))
	c.Subscribe(func(Value) { panic("boom") }, WithKey("bad"))

	require.NoError(t, c.Next(context.Background(), Replace(Value{"a": 1})))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	require.Equal(t, tracing.EventCallbackPanic, events[0].Name)
}

func TestTracing_ImmediateSubscribeSpan(t *testing.T) {
	rec, tp := newRecordingTracer(t)
	c := New(nil, WithTracer(tp.Tracer("test")), WithBehavior(true))

	c.Subscribe(func(Value) {}, WithKey("view"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, tracing.SpanSubscribe, spans[0].Name())
	require.Equal(t, "view", attrs(spans[0])[tracing.AttrSubscriberKey].AsString())
}

func TestWithTracer_NilKeepsNoop(t *testing.T) {
	c := New(nil, WithTracer(nil))
	require.NotPanics(t, func() {
		require.NoError(t, c.Next(context.Background(), Replace(Value{"a": 1})))
	})
}
