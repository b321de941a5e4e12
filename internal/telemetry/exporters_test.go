package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureExporters_PartialSuccess_UnsupportedOTLPProtocol(t *testing.T) {
	cfg := Defaults()
	cfg.Console.Enabled = false
	cfg.OTLP.Enabled = true
	cfg.OTLP.Protocol = "http"
	cfg.OTLP.Traces = true
	cfg.OTLP.Metrics = false
	cfg.Prometheus.Enabled = true
	cfg.Prometheus.Port = 8888
	cfg.Prometheus.Endpoint = "/metrics"
	cfg.Prometheus.Metrics = true

	bundle, result := configureExporters(context.Background(), cfg)

	require.Contains(t, result.Successful, "prometheus")
	require.Contains(t, result.Failed, "otlp")
	assert.Equal(t, "partial_success", string(result.Status))
	assert.NotEmpty(t, result.Failed["otlp"].Error)
	assert.Len(t, bundle.metricReaders, 1)
}

func TestConfigureExporters_OTLPUnreachableEndpoint_Fails(t *testing.T) {
	cfg := Defaults()
	cfg.Console.Enabled = false
	cfg.Prometheus.Enabled = false
	cfg.OTLP.Enabled = true
	cfg.OTLP.Protocol = "grpc"
	cfg.OTLP.Endpoint = "127.0.0.1:1" // nothing listens on this port
	cfg.OTLP.Timeout = 1
	cfg.OTLP.Traces = true
	cfg.OTLP.Metrics = false

	bundle, result := configureExporters(context.Background(), cfg)

	require.Contains(t, result.Failed, "otlp")
	assert.Equal(t, "failure", string(result.Status))
	assert.NotEmpty(t, result.Failed["otlp"].Error)
	assert.Empty(t, bundle.spanProcessors)
}

func TestConfigureExporters_AllDisabled_Success(t *testing.T) {
	cfg := Defaults()

	_, result := configureExporters(context.Background(), cfg)

	assert.Equal(t, "success", string(result.Status))
	assert.Empty(t, result.Successful)
	assert.Empty(t, result.Failed)
}
