package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func header(msg kafka.Message, key string) string {
	return NewHeaderCarrier(&msg.Headers).Get(key)
}

func TestNewEvent_Fields(t *testing.T) {
	type synced struct {
		CartID string `json:"cart_id"`
		Items  int    `json:"item_count"`
	}

	event, err := NewEvent("cart.synced", "sess-1", "cart", "cartsync", synced{CartID: "c-9", Items: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "cart.synced", event.EventType)
	assert.Equal(t, "sess-1", event.AggregateID)
	assert.Equal(t, "cart", event.AggregateType)
	assert.Equal(t, "cartsync", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got synced
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, synced{CartID: "c-9", Items: 3}, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("cart.synced", "s", "cart", "cartsync", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart.synced")
}

func TestEvent_Chaining(t *testing.T) {
	event, err := NewEvent("cart.synced", "s", "cart", "cartsync", nil)
	require.NoError(t, err)

	same := event.WithCorrelationID("corr-1").WithMetadata("cart_id", "c-1").WithMetadata("empty", "")
	assert.Same(t, event, same)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, map[string]string{"cart_id": "c-1"}, event.Metadata)
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{broken`))
	require.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront.cart.synced", Topic("cart", "synced"))
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_PublishBuildsMessage(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, quietLogger())

	event, err := NewEvent("cart.synced", "sess-1", "cart", "cartsync", map[string]int{"item_count": 2})
	require.NoError(t, err)
	event.WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(context.Background(), Topic("cart", "synced"), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "storefront.cart.synced", msg.Topic)
	assert.Equal(t, "sess-1", string(msg.Key))
	assert.Equal(t, "cart.synced", header(msg, "event_type"))
	assert.Equal(t, "cartsync", header(msg, "source"))
	assert.Equal(t, "corr-7", header(msg, "correlation_id"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_PublishInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, quietLogger())
	event, err := NewEvent("cart.synced", "s", "cart", "cartsync", nil)
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, "t", event))

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(w.msgs[0], "traceparent"))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, quietLogger())

	event, err := NewEvent("cart.synced", "s", "cart", "cartsync", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "storefront.cart.synced", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storefront.cart.synced")
	assert.ErrorIs(t, err, w.err)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewProducerWithWriter(w, nil, quietLogger()).Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.Equal(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, headers, 2)
}
