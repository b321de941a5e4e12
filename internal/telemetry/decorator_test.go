package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func newTestInstrumented(t *testing.T) *Instrumented {
	t.Helper()
	i, err := NewInstrumented(tracenoop.NewTracerProvider().Tracer("test"), metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return i
}

func TestRun_SuccessPropagatesNoError(t *testing.T) {
	i := newTestInstrumented(t)
	ran := false

	err := i.Run(context.Background(), "op.success", func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRun_FailurePropagatesError(t *testing.T) {
	i := newTestInstrumented(t)
	wantErr := errors.New("boom")

	err := i.Run(context.Background(), "op.failure", func(ctx context.Context) error {
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
}

func TestRun_ContextCancellationPropagates(t *testing.T) {
	i := newTestInstrumented(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := i.Run(ctx, "op.cancelled", func(ctx context.Context) error {
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunValue_ReturnsValueAndError(t *testing.T) {
	i := newTestInstrumented(t)

	value, err := RunValue(i, context.Background(), "op.value", func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}
