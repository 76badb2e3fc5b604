package mock_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/agent/mock"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
	"github.com/tailored-agentic-units/incidentdesk/tools"
)

func TestScripted_ReplaysInOrder(t *testing.T) {
	boom := errors.New("boom")
	s := mock.NewScripted(
		mock.Calls(protocol.ToolCall{ID: "c1", Name: "search_incidents"}),
		mock.Fail(boom),
		mock.Final("done"),
	)

	ctx := context.Background()

	d, err := s.Decide(ctx, agent.Request{Message: "one"})
	if err != nil || d.IsFinal() {
		t.Fatalf("first decision: got %+v, %v", d, err)
	}

	if _, err := s.Decide(ctx, agent.Request{Message: "two"}); !errors.Is(err, boom) {
		t.Fatalf("second decision: got %v, want boom", err)
	}

	for range 2 {
		d, err = s.Decide(ctx, agent.Request{Message: "three"})
		if err != nil || d.Text != "done" {
			t.Fatalf("got %+v, %v, want repeated final answer", d, err)
		}
	}

	reqs := s.Requests()
	if len(reqs) != 4 {
		t.Fatalf("got %d recorded requests, want 4", len(reqs))
	}
	if reqs[1].Message != "two" {
		t.Errorf("got message %q, want %q", reqs[1].Message, "two")
	}
}

func TestScripted_Block(t *testing.T) {
	s := mock.NewScripted(mock.Block())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Decide(ctx, agent.Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRules_Decide(t *testing.T) {
	catalog := []protocol.Tool{{Name: "get_incident_details"}}
	r := mock.NewRules()
	ctx := context.Background()

	t.Run("incident numbers become calls", func(t *testing.T) {
		d, err := r.Decide(ctx, agent.Request{Message: "compare inc0010001 with INC0010002", Catalog: catalog})
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if len(d.Calls) != 2 {
			t.Fatalf("got %d calls, want 2", len(d.Calls))
		}
		if !strings.Contains(d.Calls[0].Arguments, "INC0010001") {
			t.Errorf("got arguments %q, want upper-cased number", d.Calls[0].Arguments)
		}
	})

	t.Run("tool results become the answer", func(t *testing.T) {
		d, err := r.Decide(ctx, agent.Request{
			Message: "show INC0010001",
			Catalog: catalog,
			Steps: []agent.Step{{
				Calls:   []protocol.ToolCall{{ID: "call_1", Name: "get_incident_details"}},
				Results: []tools.Result{{CallID: "call_1", Content: "Incident INC0010001"}},
			}},
		})
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if d.Text != "Incident INC0010001" {
			t.Errorf("got %q, want tool output", d.Text)
		}
	})

	t.Run("no incident number", func(t *testing.T) {
		d, err := r.Decide(ctx, agent.Request{Message: "hello", Catalog: catalog})
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if !d.IsFinal() || d.Text == "" {
			t.Errorf("got %+v, want a non-empty final answer", d)
		}
	})
}

func TestRules_RegisteredAsMockProvider(t *testing.T) {
	a, err := agent.New(&agent.Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := a.(*mock.Rules); !ok {
		t.Errorf("got %T, want *mock.Rules", a)
	}
}
