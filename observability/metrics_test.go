package observability_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tailored-agentic-units/incidentdesk/observability"
)

func newMetricsObserver(t *testing.T) (*observability.Metrics, *observability.MetricsObserver) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return metrics, observability.NewMetricsObserver(metrics)
}

func TestMetricsObserver_Exchanges(t *testing.T) {
	metrics, obs := newMetricsObserver(t)
	ctx := context.Background()

	obs.OnEvent(ctx, observability.Event{
		Type: "kernel.exchange.complete",
		Data: map[string]any{"status": "done", "duration": 2 * time.Second, "iterations": 2},
	})
	obs.OnEvent(ctx, observability.Event{
		Type: "kernel.exchange.complete",
		Data: map[string]any{"status": "done", "duration": time.Second, "iterations": 1},
	})
	obs.OnEvent(ctx, observability.Event{
		Type: "kernel.exchange.timeout",
		Data: map[string]any{"status": "timed_out", "duration": 80 * time.Second},
	})

	expected := `
		# HELP incidentdesk_exchanges_total Total number of chat exchanges by final status
		# TYPE incidentdesk_exchanges_total counter
		incidentdesk_exchanges_total{status="done"} 2
		incidentdesk_exchanges_total{status="timed_out"} 1
	`
	if err := testutil.CollectAndCompare(metrics.ExchangeCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	if count := testutil.CollectAndCount(metrics.ExchangeDuration); count != 2 {
		t.Errorf("Expected 2 duration series, got %d", count)
	}
}

func TestMetricsObserver_ToolCalls(t *testing.T) {
	metrics, obs := newMetricsObserver(t)
	ctx := context.Background()

	for _, failed := range []bool{false, false, true} {
		obs.OnEvent(ctx, observability.Event{
			Type: "tool.call.complete",
			Data: map[string]any{"tool": "get_incident_details", "error": failed, "duration": 100 * time.Millisecond},
		})
	}

	expected := `
		# HELP incidentdesk_tool_calls_total Tool invocations by tool and outcome
		# TYPE incidentdesk_tool_calls_total counter
		incidentdesk_tool_calls_total{status="error",tool="get_incident_details"} 1
		incidentdesk_tool_calls_total{status="success",tool="get_incident_details"} 2
	`
	if err := testutil.CollectAndCompare(metrics.ToolCallCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetricsObserver_Sessions(t *testing.T) {
	metrics, obs := newMetricsObserver(t)
	ctx := context.Background()

	obs.OnEvent(ctx, observability.Event{Type: "session.create"})
	obs.OnEvent(ctx, observability.Event{Type: "session.create"})
	obs.OnEvent(ctx, observability.Event{Type: "session.evict"})
	obs.OnEvent(ctx, observability.Event{Type: "session.trim"})
	obs.OnEvent(ctx, observability.Event{Type: "unrelated.event"})

	if got := testutil.ToFloat64(metrics.ActiveSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SessionTrims); got != 1 {
		t.Errorf("session trims = %v, want 1", got)
	}
}

func TestMetricsObserver_Decisions(t *testing.T) {
	metrics, obs := newMetricsObserver(t)

	obs.OnEvent(context.Background(), observability.Event{Type: "kernel.decision", Data: map[string]any{"kind": "tools"}})
	obs.OnEvent(context.Background(), observability.Event{Type: "kernel.decision"})

	if got := testutil.ToFloat64(metrics.DecisionCounter.WithLabelValues("tools")); got != 1 {
		t.Errorf("tools decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.DecisionCounter.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown decisions = %v, want 1", got)
	}
}
