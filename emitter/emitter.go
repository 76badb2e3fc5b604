// Package emitter delivers exchange outcomes to clients, either as one JSON
// body or as a stream of server-sent events that reveals the reply a word
// at a time.
package emitter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"unicode"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
	"github.com/tailored-agentic-units/incidentdesk/core/response"
	"github.com/tailored-agentic-units/incidentdesk/kernel"
)

// StreamTimeoutMessage is the error event text for a timed-out exchange.
const StreamTimeoutMessage = "Request timeout. Please try a simpler query."

// Sink receives stream events in order.
type Sink interface {
	Send(event string, data any) error
}

// Config controls incremental delivery.
type Config struct {
	// Pace is the delay between consecutive message events.
	Pace config.Duration `json:"pace,omitempty" yaml:"pace,omitempty"`
}

// DefaultConfig paces chunks 50ms apart.
func DefaultConfig() Config {
	return Config{Pace: config.Duration(50 * time.Millisecond)}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Pace > 0 {
		c.Pace = source.Pace
	}
}

// Emitter writes outcomes to clients.
type Emitter struct {
	pace  time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithSleep replaces the pacing wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Emitter) { e.sleep = sleep }
}

// New creates an Emitter.
func New(cfg Config, opts ...Option) *Emitter {
	e := &Emitter{pace: cfg.Pace.Std(), sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Atomic writes the outcome as a {"reply": ...} body with the status code
// of the outcome.
func Atomic(w http.ResponseWriter, out kernel.Outcome) error {
	return WriteJSON(w, out.Status.HTTPStatus(), response.Reply{Reply: out.Reply})
}

// WriteJSON writes v as a JSON body with status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// Stream sends the outcome as events. A completed exchange becomes one
// message event per chunk followed by a complete event carrying the full
// reply; any other outcome becomes a single error event. When ctx ends
// mid-stream, emission stops and ctx.Err() is returned.
func (e *Emitter) Stream(ctx context.Context, sink Sink, out kernel.Outcome) error {
	switch out.Status {
	case kernel.StatusDone:
	case kernel.StatusTimedOut:
		return sink.Send(response.EventError, response.StreamError{Error: StreamTimeoutMessage})
	default:
		return sink.Send(response.EventError, response.StreamError{Error: kernel.FailureFallback})
	}

	for i, chunk := range Chunk(out.Reply) {
		if i > 0 {
			if err := e.sleep(ctx, e.pace); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Send(response.EventMessage, response.Token{Token: chunk}); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return sink.Send(response.EventComplete, response.Complete{Complete: true, FullMessage: out.Reply})
}

// Chunk splits text into words, each carrying the whitespace that follows
// it. Leading whitespace belongs to the first chunk, so joining the chunks
// always reproduces text exactly.
func Chunk(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	seenWord, prevSpace := false, false

	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && prevSpace && seenWord {
			chunks = append(chunks, text[start:i])
			start = i
		}
		if !space {
			seenWord = true
		}
		prevSpace = space
	}
	return append(chunks, text[start:])
}
