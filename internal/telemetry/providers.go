package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the process-wide tracer and meter providers along with
// a Shutdown hook that flushes and closes every configured exporter.
type Providers struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	Shutdown func(context.Context) error

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	result         PartialConfigResult
}

// Result exposes the partial-success outcome of configuring this
// Providers' exporters, for callers that want to report it.
func (p Providers) Result() PartialConfigResult {
	return p.result
}

// Init builds the Resource, the tracer and meter providers, and every
// enabled exporter from the resolved Config. Reinitialisation is the
// caller's responsibility: shut down the previous Providers before calling
// Init again so exporters are not double-registered.
func Init(ctx context.Context, cfg Config) (Providers, error) {
	res, err := buildResource(ctx, cfg)
	if err != nil {
		return Providers{}, fmt.Errorf("building telemetry resource: %w", err)
	}

	bundle, result := configureExporters(ctx, cfg)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg)),
	)
	for _, sp := range bundle.spanProcessors {
		tp.RegisterSpanProcessor(NewAttributeFilter(sp, cfg.DebugMode))
	}
	otel.SetTracerProvider(tp)

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range bundle.metricReaders {
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	providers := Providers{
		Tracer:         tp.Tracer(cfg.ServiceName),
		Meter:          mp.Meter(cfg.ServiceName),
		tracerProvider: tp,
		meterProvider:  mp,
		result:         result,
	}
	providers.Shutdown = func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	return providers, nil
}

func buildResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

// buildSampler selects a sampler from the standard OTel sampler env vars,
// defaulting to always-on so that development runs see every span.
func buildSampler(cfg Config) sdktrace.Sampler {
	switch cfg.tracesSampler {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(parseRatio(cfg.tracesSamplerArg))
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseRatio(cfg.tracesSamplerArg)))
	case "always_on", "parentbased_always_on", "":
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.AlwaysSample()
	}
}

func parseRatio(arg string) float64 {
	if arg == "" {
		return 1.0
	}
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}

// otlpDialTimeout bounds how long an OTLP exporter construction may take
// to establish its initial connection before being reported as failed.
const otlpDialTimeout = 30 * time.Second
