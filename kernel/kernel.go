// Package kernel runs chat exchanges: one user message in, one reply out.
//
// An exchange takes the session lock, loads the transcript, and drives the
// reasoning state machine. Each round asks the agent for a decision. A
// final answer ends the exchange; tool calls run on the executor and their
// results feed the next round. The loop is bounded three ways: an
// iteration cap and a loop budget force a best-effort answer, and an outer
// budget abandons the exchange with a timeout fallback. Only a completed
// exchange writes to the transcript.
//
//	k, err := kernel.New(&cfg, kernel.WithRegistry(catalog))
//	outcome := k.Exchange(ctx, "default-session", "Show me INC0010001")
package kernel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
	"github.com/tailored-agentic-units/incidentdesk/memory"
	"github.com/tailored-agentic-units/incidentdesk/observability"
	"github.com/tailored-agentic-units/incidentdesk/session"
	"github.com/tailored-agentic-units/incidentdesk/tools"
)

// Option configures a Kernel. Options are applied before config-driven
// initialization; a subsystem set by an option is not created from config.
type Option func(*Kernel)

// WithAgent overrides the config-created agent.
func WithAgent(a agent.Agent) Option {
	return func(k *Kernel) { k.agent = a }
}

// WithSessions overrides the config-created session store.
func WithSessions(s session.Store) Option {
	return func(k *Kernel) { k.sessions = s }
}

// WithRegistry sets the tool registry. Without it the catalog is empty.
func WithRegistry(r *tools.Registry) Option {
	return func(k *Kernel) { k.tools = r }
}

// WithExecutor overrides the executor built over the registry.
func WithExecutor(e *tools.Executor) Option {
	return func(k *Kernel) { k.executor = e }
}

// WithObserver overrides the configured observer.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithClock replaces time.Now for elapsed time and transcript stamps.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) { k.now = now }
}

// Kernel runs exchanges. It is safe for concurrent use.
type Kernel struct {
	agent    agent.Agent
	adapter  *agent.Adapter
	agents   *agent.Registry
	tools    *tools.Registry
	executor *tools.Executor
	sessions session.Store
	observer observability.Observer
	now      func() time.Time

	slots chan struct{}

	systemPrompt    string
	maxIterations   int
	loopTimeout     time.Duration
	exchangeTimeout time.Duration
}

// New creates a Kernel from configuration. Options run first; anything
// they leave unset is built from cfg.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		agents:          agent.NewRegistry(),
		systemPrompt:    cfg.SystemPrompt,
		maxIterations:   cfg.MaxIterations,
		loopTimeout:     cfg.LoopTimeout.Std(),
		exchangeTimeout: cfg.ExchangeTimeout.Std(),
	}
	for _, opt := range opts {
		opt(k)
	}

	for name, agentCfg := range cfg.Agents {
		if err := k.agents.Register(name, agentCfg); err != nil {
			return nil, fmt.Errorf("failed to register agent %q: %w", name, err)
		}
	}

	if k.observer == nil {
		obs, err := observability.Resolve(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		k.observer = obs
	}

	if k.now == nil {
		k.now = time.Now
	}

	if k.agent == nil {
		a, err := k.configuredAgent(cfg)
		if err != nil {
			return nil, err
		}
		k.agent = a
	}
	k.adapter = agent.NewAdapter(k.agent, cfg.Agent.Timeout.Std())

	if k.tools == nil {
		k.tools = tools.NewRegistry()
	}
	if k.executor == nil {
		k.executor = tools.NewExecutor(k.tools, cfg.Tools, k.observer)
	}

	if k.sessions == nil {
		opts := []session.Option{session.WithObserver(k.observer)}
		transcripts, err := memory.New(&cfg.Memory)
		if err != nil {
			return nil, fmt.Errorf("failed to create transcript store: %w", err)
		}
		if transcripts != nil {
			opts = append(opts, session.WithPersister(transcripts))
		}
		k.sessions = session.NewMemoryStore(cfg.Session, opts...)
	}

	if k.maxIterations <= 0 {
		k.maxIterations = defaultMaxIterations
	}
	if k.loopTimeout <= 0 {
		k.loopTimeout = defaultLoopTimeout
	}
	if k.exchangeTimeout <= 0 {
		k.exchangeTimeout = defaultExchangeTimeout
	}
	slots := cfg.MaxExchanges
	if slots <= 0 {
		slots = defaultMaxExchanges
	}
	k.slots = make(chan struct{}, slots)

	return k, nil
}

func (k *Kernel) configuredAgent(cfg *Config) (agent.Agent, error) {
	if cfg.ActiveAgent != "" {
		a, err := k.agents.Get(cfg.ActiveAgent)
		if err != nil {
			return nil, fmt.Errorf("failed to select agent: %w", err)
		}
		return a, nil
	}

	a, err := agent.New(&cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return a, nil
}

// Agent returns the reasoning engine in use.
func (k *Kernel) Agent() agent.Agent {
	return k.agent
}

// Agents returns the registry of named alternate agents.
func (k *Kernel) Agents() *agent.Registry {
	return k.agents
}

// Sessions returns the session store.
func (k *Kernel) Sessions() session.Store {
	return k.sessions
}

// Catalog returns the tool catalog offered to the agent.
func (k *Kernel) Catalog() []protocol.Tool {
	return k.tools.List()
}

// loopResult is what the loop goroutine hands back to Exchange.
type loopResult struct {
	state      State
	reply      string
	iterations int
	forced     bool
	records    []ToolCallRecord
	err        error
}

// Exchange runs one exchange and returns its Outcome. It never returns
// without an Outcome and never panics.
//
// The outer budget covers waiting for the session lock, waiting for a free
// exchange slot, the loop, and the transcript commit.
func (k *Kernel) Exchange(ctx context.Context, sessionID, message string) Outcome {
	start := k.now()
	out := Outcome{
		ID:        uuid.New().String(),
		SessionID: sessionID,
	}

	ctx, cancel := context.WithTimeout(ctx, k.exchangeTimeout)
	defer cancel()

	observability.Emit(ctx, k.observer, EventExchangeStart, observability.LevelInfo, "kernel.Exchange", map[string]any{
		"exchange_id":    out.ID,
		"session_id":     sessionID,
		"message_length": len(message),
		"max_iterations": k.maxIterations,
		"tools":          k.tools.Len(),
	})

	unlock, err := k.sessions.Lock(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return k.finish(ctx, out, start, loopResult{state: TimedOut, err: err})
		}
		return k.finish(ctx, out, start, loopResult{state: Failed, err: err})
	}
	defer unlock()

	history, err := k.sessions.Create(ctx, sessionID)
	if err != nil {
		return k.finish(ctx, out, start, loopResult{state: Failed, err: err})
	}

	select {
	case k.slots <- struct{}{}:
	case <-ctx.Done():
		return k.finish(ctx, out, start, loopResult{state: TimedOut, err: ctx.Err()})
	}

	done := make(chan loopResult, 1)
	go func() {
		defer func() { <-k.slots }()
		defer func() {
			if r := recover(); r != nil {
				done <- loopResult{state: Failed, err: fmt.Errorf("%w: %v", ErrExchangePanic, r)}
			}
		}()

		loopCtx, cancelLoop := context.WithTimeout(ctx, k.loopTimeout)
		defer cancelLoop()

		done <- k.run(ctx, loopCtx, out.ID, history, message)
	}()

	var res loopResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = loopResult{state: TimedOut, err: ctx.Err()}
	}

	if res.state == Done {
		at := k.now()
		if err := k.sessions.Append(ctx, sessionID,
			session.UserTurn(message, at),
			session.AssistantTurn(res.reply, at),
		); err != nil {
			res.state = Failed
			res.err = fmt.Errorf("commit failed: %w", err)
		}
	}

	return k.finish(ctx, out, start, res)
}

// run drives the state machine until it reaches a terminal state. ctx is
// the outer budget, loopCtx the loop budget nested inside it.
func (k *Kernel) run(ctx, loopCtx context.Context, exchangeID string, history []session.Turn, message string) loopResult {
	req := agent.Request{
		System:  k.systemPrompt,
		History: session.Messages(history),
		Message: message,
		Catalog: k.tools.List(),
	}

	var (
		res     loopResult
		pending []protocol.ToolCall
	)

	state := AwaitDecision
	for !state.Terminal() {
		switch state {
		case AwaitDecision:
			if res.iterations >= k.maxIterations {
				k.forceStop(ctx, &res, req.Steps, ErrMaxIterations)
				state = Done
				continue
			}
			if loopCtx.Err() != nil {
				state = k.interrupted(ctx, &res, req.Steps)
				continue
			}

			res.iterations++
			d, err := k.adapter.Decide(loopCtx, req)
			if err != nil {
				if ctx.Err() != nil || loopCtx.Err() != nil {
					state = k.interrupted(ctx, &res, req.Steps)
					continue
				}
				res.err = err
				state = Failed
				continue
			}

			kind := "final"
			if !d.IsFinal() {
				kind = "tool_calls"
			}
			observability.Emit(ctx, k.observer, EventDecision, observability.LevelVerbose, "kernel.Exchange", map[string]any{
				"exchange_id": exchangeID,
				"iteration":   res.iterations,
				"kind":        kind,
				"calls":       len(d.Calls),
			})

			if d.IsFinal() {
				res.reply = d.Text
				state = Done
				continue
			}
			pending = d.Calls
			state = ExecutingTools

		case ExecutingTools:
			observability.Emit(ctx, k.observer, EventToolsStart, observability.LevelVerbose, "kernel.Exchange", map[string]any{
				"exchange_id": exchangeID,
				"iteration":   res.iterations,
				"calls":       len(pending),
			})

			results := k.executor.ExecuteBatch(loopCtx, pending)

			failed := 0
			for i, call := range pending {
				if results[i].IsError {
					failed++
				}
				res.records = append(res.records, ToolCallRecord{
					ToolCall:  call,
					Iteration: res.iterations,
					Result:    results[i].Content,
					IsError:   results[i].IsError,
				})
			}
			req.Steps = append(req.Steps, agent.Step{Calls: pending, Results: results})
			pending = nil

			observability.Emit(ctx, k.observer, EventToolsComplete, observability.LevelVerbose, "kernel.Exchange", map[string]any{
				"exchange_id": exchangeID,
				"iteration":   res.iterations,
				"failed":      failed,
			})
			state = AwaitDecision
		}
	}

	res.state = state
	return res
}

// interrupted resolves a loop that lost its context: the outer budget
// ending is a timeout, the loop budget ending is a forced stop.
func (k *Kernel) interrupted(ctx context.Context, res *loopResult, steps []agent.Step) State {
	if ctx.Err() != nil {
		res.err = ctx.Err()
		return TimedOut
	}
	k.forceStop(ctx, res, steps, ErrLoopTimeout)
	return Done
}

// forceStop answers with the successful output of the most recent tool
// round, or a fixed notice when that round produced none.
func (k *Kernel) forceStop(ctx context.Context, res *loopResult, steps []agent.Step, reason error) {
	res.forced = true
	res.err = reason
	res.reply = ForcedStopReply

	if n := len(steps); n > 0 {
		var parts []string
		for _, r := range steps[n-1].Results {
			if r.IsError || strings.TrimSpace(r.Content) == "" {
				continue
			}
			parts = append(parts, r.Content)
		}
		if len(parts) > 0 {
			res.reply = strings.Join(parts, "\n\n")
		}
	}

	observability.Emit(ctx, k.observer, EventExchangeForced, observability.LevelWarning, "kernel.Exchange", map[string]any{
		"reason":     reason.Error(),
		"iterations": res.iterations,
		"steps":      len(steps),
	})
}

func (k *Kernel) finish(ctx context.Context, out Outcome, start time.Time, res loopResult) Outcome {
	out.Status = res.state.status()
	out.Iterations = res.iterations
	out.Forced = res.forced
	out.ToolCalls = res.records
	out.Elapsed = k.now().Sub(start)

	eventType := EventExchangeComplete
	level := observability.LevelInfo

	switch out.Status {
	case StatusDone:
		out.Reply = res.reply
		out.Err = res.err
	case StatusTimedOut:
		out.Reply = TimeoutFallback
		out.Err = fmt.Errorf("%w: %w", ErrExchangeTimeout, res.err)
		eventType = EventExchangeTimeout
		level = observability.LevelWarning
	default:
		out.Reply = FailureFallback
		out.Err = res.err
		eventType = EventExchangeFailed
		level = observability.LevelError
	}

	data := map[string]any{
		"exchange_id": out.ID,
		"session_id":  out.SessionID,
		"status":      string(out.Status),
		"duration":    out.Elapsed,
		"iterations":  out.Iterations,
		"tool_calls":  len(out.ToolCalls),
		"forced":      out.Forced,
	}
	if out.Err != nil {
		data["error"] = out.Err.Error()
	}
	observability.Emit(context.WithoutCancel(ctx), k.observer, eventType, level, "kernel.Exchange", data)

	return out
}
