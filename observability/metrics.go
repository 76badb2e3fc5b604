package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event types the metrics observer understands. The emitting packages own
// the constants; these mirror their values so this package stays a leaf.
const (
	eventExchangeComplete EventType = "kernel.exchange.complete"
	eventExchangeTimeout  EventType = "kernel.exchange.timeout"
	eventExchangeFailed   EventType = "kernel.exchange.failed"
	eventDecision         EventType = "kernel.decision"
	eventToolComplete     EventType = "tool.call.complete"
	eventSessionCreate    EventType = "session.create"
	eventSessionEvict     EventType = "session.evict"
	eventSessionTrim      EventType = "session.trim"
)

// Metrics holds the Prometheus collectors for the service.
//
//   - ExchangeCounter: exchanges by final status (done|timed_out|failed)
//   - ExchangeDuration: exchange wall time by status
//   - ExchangeIterations: reasoning round trips per exchange
//   - DecisionCounter: decisions by kind (final|tools)
//   - ToolCallCounter: tool calls by tool and outcome (success|error)
//   - ToolCallDuration: tool call latency by tool
//   - ActiveSessions: sessions currently held in memory
//   - SessionTrims: transcript trims
//   - HTTPRequestCounter / HTTPRequestDuration: chat endpoint traffic
type Metrics struct {
	ExchangeCounter     *prometheus.CounterVec
	ExchangeDuration    *prometheus.HistogramVec
	ExchangeIterations  prometheus.Histogram
	DecisionCounter     *prometheus.CounterVec
	ToolCallCounter     *prometheus.CounterVec
	ToolCallDuration    *prometheus.HistogramVec
	ActiveSessions      prometheus.Gauge
	SessionTrims        prometheus.Counter
	HTTPRequestCounter  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry(); the CLI passes
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExchangeCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidentdesk_exchanges_total",
				Help: "Total number of chat exchanges by final status",
			},
			[]string{"status"},
		),
		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "incidentdesk_exchange_duration_seconds",
				Help:    "Wall time of chat exchanges in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 80},
			},
			[]string{"status"},
		),
		ExchangeIterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "incidentdesk_exchange_iterations",
				Help:    "Reasoning round trips per exchange",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		DecisionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidentdesk_decisions_total",
				Help: "Reasoning decisions by kind",
			},
			[]string{"kind"},
		),
		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidentdesk_tool_calls_total",
				Help: "Tool invocations by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "incidentdesk_tool_call_duration_seconds",
				Help:    "Tool invocation latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "incidentdesk_active_sessions",
				Help: "Sessions currently held in memory",
			},
		),
		SessionTrims: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "incidentdesk_session_trims_total",
				Help: "Transcript retention trims",
			},
		),
		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidentdesk_http_requests_total",
				Help: "HTTP requests by path and status code",
			},
			[]string{"path", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "incidentdesk_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 45, 80},
			},
			[]string{"path"},
		),
	}
}

// MetricsObserver translates observer events into Prometheus updates.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	m := o.metrics
	switch event.Type {
	case eventExchangeComplete, eventExchangeTimeout, eventExchangeFailed:
		status := stringField(event.Data, "status")
		m.ExchangeCounter.WithLabelValues(status).Inc()
		if d, ok := durationField(event.Data, "duration"); ok {
			m.ExchangeDuration.WithLabelValues(status).Observe(d.Seconds())
		}
		if n, ok := event.Data["iterations"].(int); ok {
			m.ExchangeIterations.Observe(float64(n))
		}
	case eventDecision:
		m.DecisionCounter.WithLabelValues(stringField(event.Data, "kind")).Inc()
	case eventToolComplete:
		tool := stringField(event.Data, "tool")
		status := "success"
		if failed, _ := event.Data["error"].(bool); failed {
			status = "error"
		}
		m.ToolCallCounter.WithLabelValues(tool, status).Inc()
		if d, ok := durationField(event.Data, "duration"); ok {
			m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
		}
	case eventSessionCreate:
		m.ActiveSessions.Inc()
	case eventSessionEvict:
		m.ActiveSessions.Dec()
	case eventSessionTrim:
		m.SessionTrims.Inc()
	}
}

func stringField(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok && s != "" {
		return s
	}
	return "unknown"
}

func durationField(data map[string]any, key string) (time.Duration, bool) {
	d, ok := data[key].(time.Duration)
	return d, ok
}
