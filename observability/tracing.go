package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for every span the service
// starts.
const TracerName = "github.com/tailored-agentic-units/incidentdesk"

// TraceConfig configures the OTLP trace exporter. An empty Endpoint leaves
// the global no-op provider in place.
type TraceConfig struct {
	Endpoint       string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure       bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName    string  `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	ServiceVersion string  `json:"service_version,omitempty" yaml:"service_version,omitempty"`
	SamplingRate   float64 `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`
}

// Merge overlays non-zero fields of source onto c.
func (c *TraceConfig) Merge(source *TraceConfig) {
	if source.Endpoint != "" {
		c.Endpoint = source.Endpoint
	}
	if source.Insecure {
		c.Insecure = true
	}
	if source.ServiceName != "" {
		c.ServiceName = source.ServiceName
	}
	if source.ServiceVersion != "" {
		c.ServiceVersion = source.ServiceVersion
	}
	if source.SamplingRate > 0 {
		c.SamplingRate = source.SamplingRate
	}
}

// SetupTracing installs a global tracer provider exporting over OTLP/gRPC.
// The returned function flushes and stops the exporter.
func SetupTracing(ctx context.Context, cfg TraceConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "incidentdesk"
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0 || cfg.SamplingRate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// TraceObserver records events as span events on the span carried by the
// event context. Events outside a recording span are dropped.
type TraceObserver struct{}

func (TraceObserver) OnEvent(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(event.Data)+2)
	attrs = append(attrs,
		attribute.String("source", event.Source),
		attribute.String("level", event.Level.String()),
	)
	for k, v := range event.Data {
		attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
	}

	span.AddEvent(string(event.Type), trace.WithTimestamp(event.Timestamp), trace.WithAttributes(attrs...))
}
