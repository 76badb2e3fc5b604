package response

// Stream event names.
const (
	EventMessage  = "message"
	EventComplete = "complete"
	EventError    = "error"
)

// Token is the payload of a "message" event.
type Token struct {
	Token    string `json:"token"`
	Complete bool   `json:"complete"`
}

// Complete is the payload of the terminal "complete" event.
type Complete struct {
	Complete    bool   `json:"complete"`
	FullMessage string `json:"full_message"`
}

// StreamError is the payload of the terminal "error" event.
type StreamError struct {
	Error string `json:"error"`
}
