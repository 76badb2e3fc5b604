package agent

import "errors"

// Sentinel errors for agents and the decision adapter.
var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentExists       = errors.New("agent already registered")
	ErrEmptyAgentName    = errors.New("agent name is empty")
	ErrUnknownProvider   = errors.New("unknown agent provider")
	ErrReasoning         = errors.New("reasoning step failed")
	ErrDecisionTimeout   = errors.New("reasoning step timed out")
	ErrMalformedDecision = errors.New("malformed decision")
)
