package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
	"github.com/tailored-agentic-units/incidentdesk/observability"
	orchestrate "github.com/tailored-agentic-units/incidentdesk/orchestrate/config"
	"github.com/tailored-agentic-units/incidentdesk/orchestrate/workflows"
)

// Executor events.
const (
	EventCallStart    observability.EventType = "tool.call.start"
	EventCallComplete observability.EventType = "tool.call.complete"
	EventBatchFailed  observability.EventType = "tool.batch.failed"
)

// ExecutorConfig bounds tool execution.
type ExecutorConfig struct {
	// Timeout applies to each call; every call in a batch gets the same one.
	Timeout  config.Duration            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Parallel orchestrate.ParallelConfig `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// DefaultExecutorConfig returns a 30 second per-call timeout and the default
// five-worker pool.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Timeout:  config.Duration(30 * time.Second),
		Parallel: orchestrate.DefaultParallelConfig(),
	}
}

func (c *ExecutorConfig) Merge(source *ExecutorConfig) {
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	c.Parallel.Merge(&source.Parallel)
}

// Executor validates and runs tool calls. Every failure mode becomes an
// error Result: unknown tool, invalid arguments, handler error, panic, and
// timeout.
//
// Tool side effects are not rolled back. A ticket created by a call that
// returned success stays created even if the exchange later fails.
type Executor struct {
	registry *Registry
	config   ExecutorConfig
	observer observability.Observer
}

// NewExecutor creates an Executor over registry. cfg values override
// DefaultExecutorConfig.
func NewExecutor(registry *Registry, cfg ExecutorConfig, observer observability.Observer) *Executor {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	c := DefaultExecutorConfig()
	c.Merge(&cfg)
	return &Executor{registry: registry, config: c, observer: observer}
}

// Execute runs a single call under the configured timeout.
func (e *Executor) Execute(ctx context.Context, call protocol.ToolCall) Result {
	start := time.Now()
	observability.Emit(ctx, e.observer, EventCallStart, observability.LevelVerbose, "tools.Executor", map[string]any{
		"tool":    call.Name,
		"call_id": call.ID,
	})

	content, err := e.run(ctx, call)

	result := Result{CallID: call.ID, Name: call.Name, Content: content}
	level := observability.LevelInfo
	if err != nil {
		result.Content = fmt.Sprintf("Error executing %s: %v", call.Name, err)
		result.IsError = true
		level = observability.LevelWarning
	}

	data := map[string]any{
		"tool":     call.Name,
		"call_id":  call.ID,
		"duration": time.Since(start),
		"error":    result.IsError,
	}
	if err != nil {
		data["reason"] = err.Error()
	}
	observability.Emit(ctx, e.observer, EventCallComplete, level, "tools.Executor", data)

	return result
}

// ExecuteBatch runs calls concurrently on the worker pool. Results pair with
// calls by index; the order in which calls actually ran is not observable.
// A failing call never cancels its siblings.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []protocol.ToolCall) []Result {
	run := func(ctx context.Context, call protocol.ToolCall) (Result, error) {
		return e.Execute(ctx, call), nil
	}

	pool := e.config.Parallel
	failFast := false
	pool.FailFastNil = &failFast

	batch, err := workflows.ProcessParallel(ctx, pool, calls, run)
	if err != nil {
		observability.Emit(ctx, e.observer, EventBatchFailed, observability.LevelWarning, "tools.Executor", map[string]any{
			"calls": len(calls),
			"error": err.Error(),
		})
	}

	results := make([]Result, len(calls))
	for i, call := range calls {
		if err, failed := batch.Failed(i); failed || i >= len(batch.Results) {
			if err == nil {
				err = workflows.ErrNotRun
			}
			results[i] = Result{
				CallID:  call.ID,
				Name:    call.Name,
				Content: fmt.Sprintf("Error executing %s: %v", call.Name, err),
				IsError: true,
			}
			continue
		}
		results[i] = batch.Results[i]
	}
	return results
}

type outcome struct {
	content string
	err     error
}

func (e *Executor) run(ctx context.Context, call protocol.ToolCall) (string, error) {
	spec, err := e.registry.Lookup(call.Name)
	if err != nil {
		return "", err
	}

	args, err := e.registry.Validate(call.Name, call.RawArguments())
	if err != nil {
		return "", err
	}

	timeout := e.config.Timeout.Std()
	var callCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrToolPanic, r)}
			}
		}()
		content, err := spec.Handler(callCtx, args)
		done <- outcome{content: content, err: err}
	}()

	select {
	case out := <-done:
		return out.content, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrToolTimeout, timeout)
		}
		return "", callCtx.Err()
	}
}
