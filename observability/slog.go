package observability

import (
	"context"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/trace"
)

// SlogObserver emits events to a slog.Logger. The event type becomes the log
// message, Data keys become attributes in sorted order, and the trace id of
// the active span is attached when one exists.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that emits to the given logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.SlogLevel()
	if !o.logger.Enabled(ctx, level) {
		return
	}

	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+2)
	attrs = append(attrs, slog.String("source", event.Source))
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Data[k]))
	}

	o.logger.LogAttrs(ctx, level, string(event.Type), attrs...)
}
