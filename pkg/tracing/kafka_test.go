package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInjectExtract_RoundTripsThroughHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "job_id", Value: []byte("1")}})
	require.Len(t, headers, 2)

	extracted := ExtractTraceContext(context.Background(), headers)
	assert.Equal(t, TraceIDFromContext(ctx), TraceIDFromContext(extracted))
	assert.NotEmpty(t, TraceIDFromContext(ctx))
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
}
