// Package mock provides reasoning engines that never leave the process.
//
// Scripted replays a fixed list of decisions and records every request it
// receives; tests use it to drive the orchestration loop. Rules is a small
// keyword engine registered as the "mock" provider so the service can run
// offline.
package mock

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

func init() {
	agent.RegisterProvider("mock", func(cfg *agent.Config) (agent.Agent, error) {
		return NewRules(), nil
	})
}

// Response is one scripted reply: a decision, an error, or both empty with a
// Func computing the reply from the request.
type Response struct {
	Decision agent.Decision
	Err      error
	Func     func(ctx context.Context, req agent.Request) (agent.Decision, error)
}

// Final returns a Response that ends the exchange with text.
func Final(text string) Response {
	return Response{Decision: agent.FinalAnswer(text)}
}

// Calls returns a Response requesting the given calls.
func Calls(calls ...protocol.ToolCall) Response {
	return Response{Decision: agent.ToolCalls(calls...)}
}

// Fail returns a Response whose Decide call fails with err.
func Fail(err error) Response {
	return Response{Err: err}
}

// Block returns a Response that waits for the context to end.
func Block() Response {
	return Response{Func: func(ctx context.Context, _ agent.Request) (agent.Decision, error) {
		<-ctx.Done()
		return agent.Decision{}, ctx.Err()
	}}
}

// Scripted replays responses in order. Once the script is exhausted the
// last response repeats.
type Scripted struct {
	id        string
	mu        sync.Mutex
	responses []Response
	requests  []agent.Request
}

// NewScripted creates a Scripted agent.
func NewScripted(responses ...Response) *Scripted {
	return &Scripted{
		id:        uuid.New().String(),
		responses: responses,
	}
}

func (s *Scripted) ID() string { return s.id }

func (s *Scripted) Decide(ctx context.Context, req agent.Request) (agent.Decision, error) {
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	var resp Response
	switch {
	case len(s.responses) == 0:
		resp = Final("ok")
	case idx < len(s.responses):
		resp = s.responses[idx]
	default:
		resp = s.responses[len(s.responses)-1]
	}
	s.mu.Unlock()

	if resp.Func != nil {
		return resp.Func(ctx, req)
	}
	if resp.Err != nil {
		return agent.Decision{}, resp.Err
	}
	return resp.Decision, nil
}

// Requests returns a copy of every request received so far.
func (s *Scripted) Requests() []agent.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Request(nil), s.requests...)
}

var incidentNumber = regexp.MustCompile(`(?i)\bINC\d+\b`)

// Rules answers from keywords. A message naming an incident number asks for
// that incident's details; once a tool round has run, the tool output is the
// answer.
type Rules struct {
	id string
}

// NewRules creates a Rules agent.
func NewRules() *Rules {
	return &Rules{id: uuid.New().String()}
}

func (r *Rules) ID() string { return r.id }

func (r *Rules) Decide(ctx context.Context, req agent.Request) (agent.Decision, error) {
	if err := ctx.Err(); err != nil {
		return agent.Decision{}, err
	}

	if n := len(req.Steps); n > 0 {
		var parts []string
		for _, result := range req.Steps[n-1].Results {
			parts = append(parts, result.Content)
		}
		return agent.FinalAnswer(strings.Join(parts, "\n\n")), nil
	}

	if !hasTool(req.Catalog, "get_incident_details") {
		return agent.FinalAnswer(fallbackAnswer), nil
	}

	numbers := incidentNumber.FindAllString(req.Message, -1)
	if len(numbers) == 0 {
		return agent.FinalAnswer(fallbackAnswer), nil
	}

	calls := make([]protocol.ToolCall, len(numbers))
	for i, number := range numbers {
		calls[i] = protocol.ToolCall{
			ID:        fmt.Sprintf("call_%d", i+1),
			Name:      "get_incident_details",
			Arguments: fmt.Sprintf(`{"incident_number":%q}`, strings.ToUpper(number)),
		}
	}
	return agent.ToolCalls(calls...), nil
}

const fallbackAnswer = "I can look up, search, create, update, resolve, assign, and delete incidents. Mention an incident number like INC0010001 to get started."

func hasTool(catalog []protocol.Tool, name string) bool {
	for _, tool := range catalog {
		if tool.Name == name {
			return true
		}
	}
	return false
}
