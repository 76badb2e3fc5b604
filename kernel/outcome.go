package kernel

import (
	"net/http"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

// Replies used when an exchange cannot produce an answer. Users see these
// texts; the underlying error stays on the Outcome.
const (
	TimeoutFallback = "This operation is taking longer than expected. Please try a simpler query or fewer incidents at once."
	FailureFallback = "I encountered an error while processing your request. Please try again with a different query."
	ForcedStopReply = "Agent stopped due to iteration limit or time limit."
)

// Status is the terminal state of an exchange.
type Status string

const (
	StatusDone     Status = "done"
	StatusTimedOut Status = "timed_out"
	StatusFailed   Status = "failed"
)

// HTTPStatus maps the status to the response code the chat endpoint uses.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusDone:
		return http.StatusOK
	case StatusTimedOut:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ToolCallRecord logs one tool invocation made during an exchange.
type ToolCallRecord struct {
	protocol.ToolCall
	Iteration int    // Decision that requested the call, from 1.
	Result    string // Tool output or error text.
	IsError   bool
}

// Outcome is the single result of an exchange. Reply is always set: the
// answer on StatusDone, a fallback text otherwise.
type Outcome struct {
	ID         string
	SessionID  string
	Reply      string
	Status     Status
	Elapsed    time.Duration
	Iterations int
	Forced     bool
	ToolCalls  []ToolCallRecord
	Err        error
}
