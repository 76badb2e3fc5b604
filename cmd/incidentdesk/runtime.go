package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tailored-agentic-units/incidentdesk/kernel"
	"github.com/tailored-agentic-units/incidentdesk/observability"
	"github.com/tailored-agentic-units/incidentdesk/servicenow"
	"github.com/tailored-agentic-units/incidentdesk/tools"

	_ "github.com/tailored-agentic-units/incidentdesk/agent/mock"
	_ "github.com/tailored-agentic-units/incidentdesk/agent/providers"
)

// runtime is everything a command needs once configuration is resolved.
type runtime struct {
	config   Config
	logger   *slog.Logger
	observer observability.Observer
	metrics  *observability.Metrics
	registry *prometheus.Registry
	kernel   *kernel.Kernel

	shutdownTracing func(context.Context) error
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// newRuntime wires observers, tracing, the ServiceNow toolset, and the
// kernel. Callers must call close.
func newRuntime(ctx context.Context, cfg Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = observability.NewMetrics(rt.registry)

	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
	observability.RegisterObserver("metrics", observability.NewMetricsObserver(rt.metrics))

	obs, err := observability.Resolve(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}
	rt.observer = obs

	shutdown, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	rt.shutdownTracing = shutdown

	if !cfg.ServiceNow.Configured() {
		logger.Warn("ServiceNow credentials not configured; tools will report an error")
	}
	client := servicenow.NewClient(cfg.ServiceNow, servicenow.WithObserver(obs))
	registry := tools.NewRegistry()
	if err := servicenow.NewToolset(client).Register(registry); err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("failed to register ServiceNow tools: %w", err)
	}

	k, err := kernel.New(&cfg.Config,
		kernel.WithRegistry(registry),
		kernel.WithObserver(obs),
	)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	rt.kernel = k
	return rt, nil
}

func (rt *runtime) close(ctx context.Context) {
	if rt.shutdownTracing == nil {
		return
	}
	if err := rt.shutdownTracing(context.WithoutCancel(ctx)); err != nil {
		rt.logger.Warn("tracing shutdown failed", "error", err)
	}
}
