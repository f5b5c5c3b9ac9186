package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Event
// ---------------------------------------------------------------------------

func TestNewEvent(t *testing.T) {
	payload := map[string]string{"session_id": "sess-1"}
	event, err := NewEvent("storefront.checkout.requested", "sess-1", "checkout", "storefront", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "checkout", event.AggregateType)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got map[string]string
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, payload, got)
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	_, err := NewEvent("x", "agg", "t", "src", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal x payload")
}

func TestEvent_WithMetadataSkipsEmpty(t *testing.T) {
	event, err := NewEvent("x", "agg", "t", "src", nil)
	require.NoError(t, err)

	event.WithMetadata("user_id", "uid-1").WithMetadata("provider", "")
	assert.Equal(t, map[string]string{"user_id": "uid-1"}, event.Metadata)
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte("not json"))
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Producer
// ---------------------------------------------------------------------------

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, testLogger())

	event, err := NewEvent("storefront.auth.logged_in", "sess-42", "session", "storefront", map[string]string{"provider": "google.com"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(context.Background(), "storefront.auth.logged_in", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "storefront.auth.logged_in", msg.Topic)
	assert.Equal(t, []byte("sess-42"), msg.Key)
	assert.Equal(t, "storefront.auth.logged_in", header(msg, "event_type"))
	assert.Equal(t, "storefront", header(msg, "source"))
	assert.Equal(t, "corr-1", header(msg, "correlation_id"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_InjectsTraceContext(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, testLogger())
	p.propagator = propagation.TraceContext{}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	event, err := NewEvent("e", "agg", "t", "src", nil)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, "topic", event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(w.msgs[0], "traceparent"))
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, testLogger())

	event, err := NewEvent("e", "agg", "t", "src", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "storefront.checkout.failed", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to storefront.checkout.failed")
	assert.Empty(t, w.msgs)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, testLogger())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"a:9092"})
	assert.Equal(t, []string{"a:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.False(t, cfg.Async)
}
