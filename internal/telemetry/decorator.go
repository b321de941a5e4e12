package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented bundles the span/metric handles a decorated operation needs.
// Go has no separate sync/async call shape the way the original runtime
// does; a single entry point covers both since every blocking operation
// already takes a context and returns through the normal call stack. The
// "async" half of the contract is satisfied by honouring ctx cancellation
// inside fn rather than by a distinct code path.
type Instrumented struct {
	tracer         trace.Tracer
	durationHist   metric.Float64Histogram
	successCounter metric.Int64Counter
	failureCounter metric.Int64Counter
}

// NewInstrumented builds an Instrumented decorator bound to the given
// tracer and meter. Pass a noop tracer/meter (trace.NewNoopTracerProvider
// et al.) to get a decorator that adds no overhead when telemetry is off.
func NewInstrumented(tracer trace.Tracer, meter metric.Meter) (*Instrumented, error) {
	durationHist, err := meter.Float64Histogram("operation.duration",
		metric.WithDescription("duration of an instrumented operation in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	successCounter, err := meter.Int64Counter("operation.success",
		metric.WithDescription("count of successful instrumented operations"))
	if err != nil {
		return nil, err
	}
	failureCounter, err := meter.Int64Counter("operation.failure",
		metric.WithDescription("count of failed instrumented operations"))
	if err != nil {
		return nil, err
	}
	return &Instrumented{
		tracer:         tracer,
		durationHist:   durationHist,
		successCounter: successCounter,
		failureCounter: failureCounter,
	}, nil
}

// Run starts a span named operation, invokes fn, records duration and a
// success/failure counter, and marks the span errored on failure. fn is
// handed the span-scoped context so cancellation and deadlines propagate
// without being swallowed; a context.Canceled or context.DeadlineExceeded
// error is recorded like any other failure and re-returned unchanged.
func (i *Instrumented) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := i.tracer.Start(ctx, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start).Seconds()

	attrs := []attribute.KeyValue{attribute.String("operation.name", operation)}
	i.durationHist.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.failureCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		return err
	}

	i.successCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}

// RunValue is Run's generic counterpart for operations that return a value
// alongside an error, avoiding a closure-captured-variable dance at every
// call site.
func RunValue[T any](i *Instrumented, ctx context.Context, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := i.Run(ctx, operation, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
