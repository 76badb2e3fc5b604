package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tailored-agentic-units/incidentdesk/core/response"
)

// DefaultSessionID is used when a request names no session.
const DefaultSessionID = "default-session"

const maxBodyBytes = 64 << 10

// ErrInvalidRequest marks a chat body that failed validation.
var ErrInvalidRequest = errors.New("invalid request")

// Client-facing rejection texts.
const (
	InvalidRequestMessage = "Invalid request format. Please check your input."
	RateLimitedMessage    = "Too many requests. Please slow down."
	UnavailableMessage    = "Our service is temporarily unavailable. Please try again in a moment."
)

const chatRequestSchema = `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1, "maxLength": 1000},
		"session_id": {
			"type": "string",
			"minLength": 1,
			"maxLength": 50,
			"pattern": "^[A-Za-z0-9_-]+$"
		}
	}
}`

var requestSchema = jsonschema.MustCompileString("chat_request.json", chatRequestSchema)

// decodeChatRequest reads and validates a chat body. Length limits apply
// to the message as sent; the returned message is trimmed and the session
// defaults to DefaultSessionID.
func decodeChatRequest(r *http.Request) (response.ChatRequest, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return response.ChatRequest{}, fmt.Errorf("%w: read body: %v", ErrInvalidRequest, err)
	}
	if len(data) > maxBodyBytes {
		return response.ChatRequest{}, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidRequest, maxBodyBytes)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return response.ChatRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if obj, ok := doc.(map[string]any); ok {
		if v, present := obj["session_id"]; present && v == nil {
			delete(obj, "session_id")
		}
	}
	if err := requestSchema.Validate(doc); err != nil {
		return response.ChatRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	obj := doc.(map[string]any)
	message := strings.TrimSpace(obj["message"].(string))
	if message == "" {
		return response.ChatRequest{}, fmt.Errorf("%w: message is blank", ErrInvalidRequest)
	}

	req := response.ChatRequest{Message: message, SessionID: DefaultSessionID}
	if id, ok := obj["session_id"].(string); ok {
		req.SessionID = id
	}
	return req, nil
}

// wantsStream reports whether the client asked for incremental delivery.
func wantsStream(r *http.Request) bool {
	if r.URL.Path == "/api/chat-stream" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
