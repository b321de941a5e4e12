package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TracingHandler wraps a slog.Handler, enriching every record with the
// active trace and span ids when the record's context carries one.
// Records without a live span pass through unchanged.
type TracingHandler struct {
	next    slog.Handler
	service string
	env     string
}

// NewTracingHandler builds a TracingHandler that writes JSON lines to w,
// rotated through lumberjack when w is a *lumberjack.Logger, pre-attaching
// service and environment attributes to every record.
func NewTracingHandler(w io.Writer, cfg Config, level slog.Level) *TracingHandler {
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &TracingHandler{
		next:    base.WithAttrs([]slog.Attr{slog.String("service", cfg.ServiceName), slog.String("environment", cfg.Environment)}),
		service: cfg.ServiceName,
		env:     cfg.Environment,
	}
}

// NewRotatingFileWriter returns an io.Writer that rotates the worker's log
// file by size, matching the teacher's daily-log rotation convention.
func NewRotatingFileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
}

func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{next: h.next.WithAttrs(attrs), service: h.service, env: h.env}
}

func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{next: h.next.WithGroup(name), service: h.service, env: h.env}
}

// ConsoleHandler is a human-readable plain-text handler writing to stderr
// for interactive terminal use. It does not colourise its records; when
// stderr is not a tty it also turns off fatih/color output process-wide
// (color.NoColor).
func ConsoleHandler(level slog.Level) slog.Handler {
	if !isTerminal() {
		color.NoColor = true
	}
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

func isTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
