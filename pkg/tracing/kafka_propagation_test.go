package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceparentRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	const tp = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	ctx := ExtractKafkaHeaders(context.Background(), []kafka.Header{
		{Key: TraceparentHeader, Value: []byte(tp)},
	})

	sc := trace.SpanContextFromContext(ctx)
	assert.True(t, sc.IsValid())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
	assert.Equal(t, tp, Traceparent(ctx))
	assert.Empty(t, Traceparent(context.Background()))
}

func TestHeaderValue(t *testing.T) {
	h := []kafka.Header{{Key: "event_type", Value: []byte("order_cancelled")}}
	assert.Equal(t, "order_cancelled", HeaderValue(h, "event_type"))
	assert.Empty(t, HeaderValue(h, "missing"))
}
