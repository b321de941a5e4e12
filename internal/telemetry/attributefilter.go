package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// allowedPrefixes lists attribute key prefixes that are always let through
// unredacted; everything else passes through Sanitise first.
var allowedPrefixes = []string{
	"service.",
	"deployment.",
	"error.",
	"worker.",
	"signal.",
	"journal.",
	"commit.",
}

// blockedKeys are dropped from spans entirely regardless of value, on the
// chance a caller attaches something like a raw OTLP header map.
var blockedKeys = map[string]bool{
	"otlp.headers": true,
	"config.raw":   true,
}

// attributeFilter wraps a delegate SpanProcessor, sanitising or dropping
// attributes before they reach the exporter.
type attributeFilter struct {
	delegate  sdktrace.SpanProcessor
	debugMode bool
}

// NewAttributeFilter wraps delegate so every span it processes has its
// attributes passed through the allow/block list and Sanitise.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, debugMode bool) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, debugMode: debugMode}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, debugMode: f.debugMode})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	return f.delegate.Shutdown(ctx)
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	return f.delegate.ForceFlush(ctx)
}

// filteredSpan presents a ReadOnlySpan with its attributes filtered.
type filteredSpan struct {
	sdktrace.ReadOnlySpan
	debugMode bool
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	original := s.ReadOnlySpan.Attributes()
	out := make([]attribute.KeyValue, 0, len(original))
	for _, kv := range original {
		key := string(kv.Key)
		if blockedKeys[key] {
			continue
		}
		if isAllowedKey(key) {
			out = append(out, kv)
			continue
		}
		if kv.Value.Type() == attribute.STRING {
			out = append(out, attribute.String(key, Sanitise(kv.Value.AsString(), s.debugMode)))
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isAllowedKey(key string) bool {
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
