package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoExportersEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.ServiceName = "test-service"

	providers, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.Equal(t, "success", string(providers.Result().Status))

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestBuildSampler_DefaultsToAlwaysOn(t *testing.T) {
	cfg := Defaults()
	sampler := buildSampler(cfg)
	assert.NotNil(t, sampler)
}

func TestParseRatio_InvalidFallsBackToOne(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 1.0, parseRatio("not-a-number"))
	assert.Equal(t, 1.0, parseRatio("2.5"))
	assert.Equal(t, 0.5, parseRatio("0.5"))
}
