package telemetry_test

import (
	"testing"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), telemetry.Sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), telemetry.Sampler(3).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), telemetry.Sampler(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), telemetry.Sampler(-1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), telemetry.Sampler(0.25).Description())
}

func TestNewTracerProvider_WithoutExporter(t *testing.T) {
	// Arrange
	cfg := config.Otel{ServiceName: "storefront-checkout-test", SamplerRatio: 1}

	// Act
	provider, shutdown, err := telemetry.NewTracerProvider(t.Context(), cfg)

	// Assert
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(t.Context()) })

	assert.Same(t, provider, otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(t.Context(), "checkout")
	defer span.End()

	assert.True(t, span.SpanContext().IsSampled())
}
