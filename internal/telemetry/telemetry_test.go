package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := SetupTracing(context.Background(), Options{ServiceName: "counterd"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupTracingWithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := SetupTracing(context.Background(), Options{
		ServiceName: "stored",
		Version:     "test",
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, before, otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
