// Package response defines the payloads exchanged with chat clients:
// the inbound request, the atomic reply, and the stream events.
package response

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Reply is the atomic response body for every exchange outcome.
type Reply struct {
	Reply string `json:"reply"`
}

// Error is the body returned when a request is rejected before an exchange
// starts (validation, rate limiting).
type Error struct {
	Error string `json:"error"`
}
