// Package telemetry provides the tracer/meter providers, multi-exporter
// configuration, sensitive-data redaction, and uniform instrumentation
// decorator used across the worker.
package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
)

// ConsoleConfig configures the stdout/stderr exporter.
type ConsoleConfig struct {
	Enabled bool
	Traces  bool
	Metrics bool
}

// OTLPConfig configures the OTLP exporter.
type OTLPConfig struct {
	Enabled  bool
	Endpoint string
	Protocol string // "grpc" or "http"
	Headers  map[string]string
	Timeout  int // seconds
	Traces   bool
	Metrics  bool
}

// PrometheusConfig configures the Prometheus metrics exporter. Traces are
// never exported via Prometheus; only metrics. Port and Endpoint are
// validated, but no HTTP listener is started for them by this package.
type PrometheusConfig struct {
	Enabled  bool
	Port     int
	Endpoint string
	Metrics  bool
}

// Config is the fully resolved telemetry configuration, after applying
// defaults, the loaded config document, and environment overrides.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Console    ConsoleConfig
	OTLP       OTLPConfig
	Prometheus PrometheusConfig

	DebugMode bool

	tracesSampler    string
	tracesSamplerArg string
}

// Defaults returns the built-in configuration baseline, the lowest-priority
// layer of resolution.
func Defaults() Config {
	return Config{
		ServiceName:    "mcp-commit-story",
		ServiceVersion: "dev",
		Environment:    "development",
		Console: ConsoleConfig{
			Enabled: false,
			Traces:  true,
			Metrics: true,
		},
		OTLP: OTLPConfig{
			Enabled:  false,
			Endpoint: "http://localhost:4317",
			Protocol: "grpc",
			Headers:  map[string]string{},
			Timeout:  30,
			Traces:   true,
			Metrics:  true,
		},
		Prometheus: PrometheusConfig{
			Enabled:  false,
			Port:     8888,
			Endpoint: "/metrics",
			Metrics:  true,
		},
	}
}

// Document is the shape of the loaded config file's telemetry section
// (`telemetry.*` in `.mcp-commit-story/config.toml`), mirrored here rather
// than imported from internal/config to keep this package free of a
// dependency on the config loader's viper plumbing.
type Document struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ConsoleEnabled bool
	ConsoleTraces  *bool
	ConsoleMetrics *bool

	OTLPEnabled  bool
	OTLPEndpoint string
	OTLPProtocol string
	OTLPHeaders  map[string]string
	OTLPTimeout  int
	OTLPTraces   *bool
	OTLPMetrics  *bool

	PrometheusEnabled  bool
	PrometheusPort     int
	PrometheusEndpoint string
	PrometheusMetrics  *bool
}

// Resolve applies the four-tier precedence (defaults < loaded document <
// standard OTel env vars < system-specific env vars) and returns the
// resolved, validated Config.
func Resolve(doc *Document, env func(string) string) (Config, error) {
	if env == nil {
		env = os.Getenv
	}
	cfg := Defaults()

	if doc != nil {
		applyDocument(&cfg, doc)
	}

	applyStandardEnv(&cfg, env)
	applySystemEnv(&cfg, env)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDocument(cfg *Config, doc *Document) {
	if doc.ServiceName != "" {
		cfg.ServiceName = doc.ServiceName
	}
	if doc.ServiceVersion != "" {
		cfg.ServiceVersion = doc.ServiceVersion
	}
	if doc.Environment != "" {
		cfg.Environment = doc.Environment
	}

	cfg.Console.Enabled = doc.ConsoleEnabled
	if doc.ConsoleTraces != nil {
		cfg.Console.Traces = *doc.ConsoleTraces
	}
	if doc.ConsoleMetrics != nil {
		cfg.Console.Metrics = *doc.ConsoleMetrics
	}

	cfg.OTLP.Enabled = doc.OTLPEnabled
	if doc.OTLPEndpoint != "" {
		cfg.OTLP.Endpoint = doc.OTLPEndpoint
	}
	if doc.OTLPProtocol != "" {
		cfg.OTLP.Protocol = doc.OTLPProtocol
	}
	if doc.OTLPHeaders != nil {
		cfg.OTLP.Headers = doc.OTLPHeaders
	}
	if doc.OTLPTimeout != 0 {
		cfg.OTLP.Timeout = doc.OTLPTimeout
	}
	if doc.OTLPTraces != nil {
		cfg.OTLP.Traces = *doc.OTLPTraces
	}
	if doc.OTLPMetrics != nil {
		cfg.OTLP.Metrics = *doc.OTLPMetrics
	}

	cfg.Prometheus.Enabled = doc.PrometheusEnabled
	if doc.PrometheusPort != 0 || doc.PrometheusEnabled {
		cfg.Prometheus.Port = doc.PrometheusPort
	}
	if doc.PrometheusEndpoint != "" {
		cfg.Prometheus.Endpoint = doc.PrometheusEndpoint
	}
	if doc.PrometheusMetrics != nil {
		cfg.Prometheus.Metrics = *doc.PrometheusMetrics
	}
}

// applyStandardEnv applies the upstream OTel environment variable
// convention, which this system treats as the third precedence tier.
func applyStandardEnv(cfg *Config, env func(string) string) {
	if v := env("OTEL_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := env("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLP.Endpoint = v
	}
	if v := env("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTLP.Headers = ParseOTLPHeaders(v)
	}
	if v := env("OTEL_EXPORTER_OTLP_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OTLP.Timeout = n
		}
	}
	if v := env("OTEL_TRACES_SAMPLER"); v != "" {
		cfg.tracesSampler = v
	}
	if v := env("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		cfg.tracesSamplerArg = v
	}
}

// applySystemEnv applies this system's own environment variables, the
// highest precedence tier.
func applySystemEnv(cfg *Config, env func(string) string) {
	if v := env("MCP_COMMIT_STORY_CONSOLE_ENABLED"); v != "" {
		cfg.Console.Enabled = parseBool(v, cfg.Console.Enabled)
	}
	if v := env("MCP_COMMIT_STORY_OTLP_ENABLED"); v != "" {
		cfg.OTLP.Enabled = parseBool(v, cfg.OTLP.Enabled)
	}
	if v := env("MCP_COMMIT_STORY_OTLP_ENDPOINT"); v != "" {
		cfg.OTLP.Endpoint = v
	}
	if v := env("MCP_COMMIT_STORY_PROMETHEUS_ENABLED"); v != "" {
		cfg.Prometheus.Enabled = parseBool(v, cfg.Prometheus.Enabled)
	}
	if v := env("MCP_COMMIT_STORY_PROMETHEUS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Prometheus.Port = n
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// ParseOTLPHeaders parses the `key1=value1,key2=value2` format used by
// OTEL_EXPORTER_OTLP_HEADERS.
func ParseOTLPHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return headers
}

func validate(cfg Config) error {
	if cfg.Prometheus.Enabled {
		if cfg.Prometheus.Port < 1 || cfg.Prometheus.Port > 65535 {
			return &errs.Validation{ConfigPath: "telemetry.exporters.prometheus.port", Reason: fmt.Sprintf("port %d out of range [1, 65535]", cfg.Prometheus.Port)}
		}
		if !strings.HasPrefix(cfg.Prometheus.Endpoint, "/") {
			return &errs.Validation{ConfigPath: "telemetry.exporters.prometheus.endpoint", Reason: "endpoint must begin with '/'"}
		}
	}

	if cfg.OTLP.Enabled {
		if cfg.OTLP.Protocol != "grpc" && cfg.OTLP.Protocol != "http" {
			return &errs.Validation{ConfigPath: "telemetry.exporters.otlp.protocol", Reason: fmt.Sprintf("protocol must be 'grpc' or 'http', got %q", cfg.OTLP.Protocol)}
		}
		if cfg.OTLP.Timeout <= 0 {
			return &errs.Validation{ConfigPath: "telemetry.exporters.otlp.timeout", Reason: "timeout must be a positive integer number of seconds"}
		}
	}

	return nil
}
