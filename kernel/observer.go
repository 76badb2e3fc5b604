package kernel

import "github.com/tailored-agentic-units/incidentdesk/observability"

// Kernel event types emitted during an exchange.
const (
	EventExchangeStart    observability.EventType = "kernel.exchange.start"
	EventDecision         observability.EventType = "kernel.decision"
	EventToolsStart       observability.EventType = "kernel.tools.start"
	EventToolsComplete    observability.EventType = "kernel.tools.complete"
	EventExchangeComplete observability.EventType = "kernel.exchange.complete"
	EventExchangeTimeout  observability.EventType = "kernel.exchange.timeout"
	EventExchangeFailed   observability.EventType = "kernel.exchange.failed"
	EventExchangeForced   observability.EventType = "kernel.exchange.forced"
)
