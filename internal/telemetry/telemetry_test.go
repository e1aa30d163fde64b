package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/breatheroute/aqiforecast/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "aqiforecast-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
	})

	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestInit_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  telemetry.Config
	}{
		{"negative ratio", telemetry.Config{SampleRatio: -0.1}},
		{"ratio above one", telemetry.Config{SampleRatio: 1.5}},
		{"enabled without endpoint", telemetry.Config{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := telemetry.Init(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{1, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		got := telemetry.Config{SampleRatio: tt.ratio}.Sampler()
		assert.Equal(t, tt.want, got.Description())
	}
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestTracerAndMeter(t *testing.T) {
	assert.NotNil(t, telemetry.Tracer("github.com/breatheroute/aqiforecast/internal/forecast"))
	assert.NotNil(t, telemetry.Meter("github.com/breatheroute/aqiforecast/internal/forecast"))
}
