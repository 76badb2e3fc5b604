package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Adapter bounds a reasoning engine. Each Decide call runs under Timeout
// and its output is checked for shape. Failures are returned wrapped in
// ErrReasoning and are never retried here; the caller decides what a failed
// step means for the exchange.
type Adapter struct {
	agent   Agent
	timeout time.Duration
}

// NewAdapter wraps a with a per-decision timeout. A zero timeout leaves the
// decision bounded only by the caller's context.
func NewAdapter(a Agent, timeout time.Duration) *Adapter {
	return &Adapter{agent: a, timeout: timeout}
}

// Agent returns the wrapped engine.
func (a *Adapter) Agent() Agent {
	return a.agent
}

type decided struct {
	decision Decision
	err      error
}

// Decide asks the engine for the next decision.
func (a *Adapter) Decide(ctx context.Context, req Request) (Decision, error) {
	var callCtx context.Context
	var cancel context.CancelFunc
	if a.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan decided, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- decided{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		d, err := a.agent.Decide(callCtx, req)
		done <- decided{decision: d, err: err}
	}()

	var out decided
	select {
	case out = <-done:
	case <-callCtx.Done():
		out.err = callCtx.Err()
	}

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Decision{}, fmt.Errorf("%w: %w after %s", ErrReasoning, ErrDecisionTimeout, a.timeout)
		}
		return Decision{}, fmt.Errorf("%w: %w", ErrReasoning, out.err)
	}

	if err := check(out.decision); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrReasoning, err)
	}
	return out.decision, nil
}

func check(d Decision) error {
	if d.IsFinal() {
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("%w: empty final answer", ErrMalformedDecision)
		}
		return nil
	}
	for i, call := range d.Calls {
		if strings.TrimSpace(call.Name) == "" {
			return fmt.Errorf("%w: tool call %d has no name", ErrMalformedDecision, i)
		}
	}
	return nil
}
