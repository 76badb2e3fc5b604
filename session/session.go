// Package session holds per-session conversation transcripts.
//
// A transcript is an ordered list of user and assistant Turns. Sessions are
// created on first reference, appended to once per completed exchange, and
// trimmed oldest-first when they outgrow the retention window. Each session
// also carries an exchange lock so concurrent requests for the same session
// run one at a time.
package session

import (
	"context"
	"regexp"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

// DefaultID is used when a request names no session.
const DefaultID = "default-session"

// MaxIDLength bounds session identifiers.
const MaxIDLength = 50

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID reports whether id is 1-50 characters of letters, digits,
// hyphen, or underscore.
func ValidID(id string) bool {
	return len(id) > 0 && len(id) <= MaxIDLength && idPattern.MatchString(id)
}

// Turn is one transcript entry.
type Turn struct {
	Role protocol.Role `json:"role"`
	Text string        `json:"text"`
	At   time.Time     `json:"at,omitzero"`
}

// UserTurn returns a user Turn stamped with at.
func UserTurn(text string, at time.Time) Turn {
	return Turn{Role: protocol.RoleUser, Text: text, At: at}
}

// AssistantTurn returns an assistant Turn stamped with at.
func AssistantTurn(text string, at time.Time) Turn {
	return Turn{Role: protocol.RoleAssistant, Text: text, At: at}
}

// Messages converts turns into conversation messages.
func Messages(turns []Turn) []protocol.Message {
	msgs := make([]protocol.Message, len(turns))
	for i, t := range turns {
		msgs[i] = protocol.NewMessage(t.Role, t.Text)
	}
	return msgs
}

// Store is the session backend used by the orchestration loop.
type Store interface {
	// Lock acquires the exchange lock for id, waiting until it is free or
	// ctx ends. The returned func releases it and is safe to call twice.
	Lock(ctx context.Context, id string) (func(), error)
	// Get returns a copy of the transcript without creating the session.
	Get(ctx context.Context, id string) ([]Turn, bool)
	// Create returns a copy of the transcript, creating the session (and
	// loading any persisted snapshot) on first reference.
	Create(ctx context.Context, id string) ([]Turn, error)
	// Append adds turns and applies retention in one step. Either every
	// turn is recorded or none is.
	Append(ctx context.Context, id string, turns ...Turn) error
	// Trim applies retention to id immediately.
	Trim(id string)
	// Len reports the number of sessions held.
	Len() int
}

// Persister saves transcripts beyond the life of the process.
type Persister interface {
	// Load returns the stored transcript and whether one existed.
	Load(ctx context.Context, id string) ([]Turn, bool, error)
	Save(ctx context.Context, id string, turns []Turn) error
}
