package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
)

// exporterBundle is the set of span processors and metric readers that
// survived configuration, ready to be registered on the providers.
type exporterBundle struct {
	spanProcessors []sdktrace.SpanProcessor
	metricReaders  []sdkmetric.Reader
}

// PartialConfigResult is an alias of errs.PartialSuccess scoped to
// exporter configuration, exposed by Providers.Result so callers can
// surface which exporters came up and which did not.
type PartialConfigResult = errs.PartialSuccess

// configureExporters sets up every enabled exporter independently. One
// exporter's failure is recorded and skipped; it never prevents the
// others from being configured, matching the partial-success contract.
func configureExporters(ctx context.Context, cfg Config) (exporterBundle, PartialConfigResult) {
	var bundle exporterBundle
	var successful []string
	failed := map[string]errs.FailureDetail{}

	if cfg.Console.Enabled {
		if err := configureConsole(cfg, &bundle); err != nil {
			failed["console"] = detail(err)
		} else {
			successful = append(successful, "console")
		}
	}

	if cfg.OTLP.Enabled {
		if err := configureOTLP(ctx, cfg, &bundle); err != nil {
			failed["otlp"] = detail(err)
		} else {
			successful = append(successful, "otlp")
		}
	}

	if cfg.Prometheus.Enabled {
		if err := configurePrometheus(cfg, &bundle); err != nil {
			failed["prometheus"] = detail(err)
		} else {
			successful = append(successful, "prometheus")
		}
	}

	return bundle, errs.NewPartialSuccess(successful, failed)
}

func detail(err error) errs.FailureDetail {
	d := errs.FailureDetail{Error: err.Error()}
	var ec *errs.ExporterConfiguration
	if asExporterConfiguration(err, &ec) && ec.Cause != nil {
		d.Details = ec.Cause.Error()
	}
	return d
}

func asExporterConfiguration(err error, target **errs.ExporterConfiguration) bool {
	ec, ok := err.(*errs.ExporterConfiguration)
	if !ok {
		return false
	}
	*target = ec
	return true
}

func configureConsole(cfg Config, bundle *exporterBundle) error {
	if cfg.Console.Traces {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return &errs.ExporterConfiguration{ExporterName: "console", Cause: err}
		}
		bundle.spanProcessors = append(bundle.spanProcessors, sdktrace.NewBatchSpanProcessor(exp))
	}
	if cfg.Console.Metrics {
		exp, err := stdoutmetric.New()
		if err != nil {
			return &errs.ExporterConfiguration{ExporterName: "console", Cause: err}
		}
		bundle.metricReaders = append(bundle.metricReaders, sdkmetric.NewPeriodicReader(exp))
	}
	return nil
}

// configureOTLP dials the collector synchronously (grpc.WithBlock) so an
// unreachable endpoint surfaces here as a configuration failure rather
// than silently succeeding and failing later on the first export.
func configureOTLP(ctx context.Context, cfg Config, bundle *exporterBundle) error {
	dialTimeout := otlpDialTimeout
	if configured := timeoutDuration(cfg.OTLP.Timeout); configured > 0 && configured < dialTimeout {
		dialTimeout = configured
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if cfg.OTLP.Protocol != "grpc" {
		return &errs.ExporterConfiguration{
			ExporterName: "otlp",
			Cause:        fmt.Errorf("protocol %q is validated but this build only dials the gRPC transport", cfg.OTLP.Protocol),
		}
	}

	if cfg.OTLP.Traces {
		exp, err := otlptracegrpc.New(dialCtx,
			otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint),
			otlptracegrpc.WithHeaders(cfg.OTLP.Headers),
			otlptracegrpc.WithTimeout(timeoutDuration(cfg.OTLP.Timeout)),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithBlock(), grpc.FailOnNonTempDialError(true)),
		)
		if err != nil {
			return &errs.ExporterConfiguration{
				ExporterName: "otlp",
				Cause:        fmt.Errorf("failed to connect to %s after %d seconds: %w", cfg.OTLP.Endpoint, cfg.OTLP.Timeout, err),
			}
		}
		bundle.spanProcessors = append(bundle.spanProcessors, sdktrace.NewBatchSpanProcessor(exp))
	}

	if cfg.OTLP.Metrics {
		exp, err := otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLP.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.OTLP.Headers),
			otlpmetricgrpc.WithTimeout(timeoutDuration(cfg.OTLP.Timeout)),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithDialOption(grpc.WithBlock(), grpc.FailOnNonTempDialError(true)),
		)
		if err != nil {
			return &errs.ExporterConfiguration{
				ExporterName: "otlp",
				Cause:        fmt.Errorf("failed to connect to %s after %d seconds: %w", cfg.OTLP.Endpoint, cfg.OTLP.Timeout, err),
			}
		}
		bundle.metricReaders = append(bundle.metricReaders, sdkmetric.NewPeriodicReader(exp))
	}

	return nil
}

func timeoutDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func configurePrometheus(cfg Config, bundle *exporterBundle) error {
	if !cfg.Prometheus.Metrics {
		return nil
	}
	exp, err := prometheus.New()
	if err != nil {
		return &errs.ExporterConfiguration{ExporterName: "prometheus", Cause: err}
	}
	bundle.metricReaders = append(bundle.metricReaders, exp)
	return nil
}
