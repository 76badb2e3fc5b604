package workflows_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/orchestrate/config"
	"github.com/tailored-agentic-units/incidentdesk/orchestrate/workflows"
)

func noopConfig() config.ParallelConfig {
	cfg := config.DefaultParallelConfig()
	cfg.Observer = "noop"
	return cfg
}

func TestProcessParallel_EmptyInput(t *testing.T) {
	processor := func(ctx context.Context, item string) (string, error) {
		return item, nil
	}

	result, err := workflows.ProcessParallel(context.Background(), noopConfig(), []string{}, processor)

	if err != nil {
		t.Fatalf("Expected no error for empty input, got: %v", err)
	}
	if len(result.Results) != 0 {
		t.Errorf("Expected empty results, got %d results", len(result.Results))
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected empty errors, got %d errors", len(result.Errors))
	}
}

func TestProcessParallel_PreservesOrder(t *testing.T) {
	items := []string{"one", "two", "three", "four", "five", "six", "seven"}

	processor := func(ctx context.Context, item string) (string, error) {
		// Longer items finish first so completion order differs from input order.
		time.Sleep(time.Duration(10-len(item)) * time.Millisecond)
		return strings.ToUpper(item), nil
	}

	result, err := workflows.ProcessParallel(context.Background(), noopConfig(), items, processor)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Results) != len(items) {
		t.Fatalf("Expected %d results, got %d", len(items), len(result.Results))
	}
	for i, item := range items {
		if result.Results[i] != strings.ToUpper(item) {
			t.Errorf("Result %d: expected %q, got %q", i, strings.ToUpper(item), result.Results[i])
		}
	}
}

func TestProcessParallel_BoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	items := make([]int, 20)

	processor := func(ctx context.Context, item int) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return item, nil
	}

	cfg := noopConfig()
	cfg.MaxWorkers = 3
	if _, err := workflows.ProcessParallel(context.Background(), cfg, items, processor); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := peak.Load(); got > 3 {
		t.Errorf("Expected at most 3 concurrent workers, got %d", got)
	}
}

func TestProcessParallel_CollectAll(t *testing.T) {
	items := []int{1, 2, 3, 4}
	failure := errors.New("odd item")

	processor := func(ctx context.Context, item int) (int, error) {
		if item%2 == 1 {
			return 0, failure
		}
		return item * 10, nil
	}

	result, err := workflows.ProcessParallel(context.Background(), noopConfig(), items, processor)
	if err != nil {
		t.Fatalf("Expected no error when some items succeed, got: %v", err)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(result.Errors))
	}
	if result.Results[1] != 20 || result.Results[3] != 40 {
		t.Errorf("Expected successes at positions 1 and 3, got %v", result.Results)
	}
	if err, failed := result.Failed(0); !failed || !errors.Is(err, failure) {
		t.Errorf("Expected item 0 to fail with %v, got %v (failed=%v)", failure, err, failed)
	}
	if _, failed := result.Failed(1); failed {
		t.Error("Expected item 1 to succeed")
	}
}

func TestProcessParallel_AllFailed(t *testing.T) {
	processor := func(ctx context.Context, item int) (int, error) {
		return 0, errors.New("upstream unavailable")
	}

	result, err := workflows.ProcessParallel(context.Background(), noopConfig(), []int{1, 2}, processor)

	var parallelErr *workflows.ParallelError[int]
	if !errors.As(err, &parallelErr) {
		t.Fatalf("Expected ParallelError, got: %v", err)
	}
	if len(parallelErr.Errors) != 2 || len(result.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(parallelErr.Errors))
	}
	if !strings.Contains(err.Error(), "'upstream unavailable' (2)") {
		t.Errorf("Expected grouped error message, got: %s", err.Error())
	}
}

func TestProcessParallel_FailFast(t *testing.T) {
	failFast := true
	cfg := noopConfig()
	cfg.MaxWorkers = 1
	cfg.FailFastNil = &failFast

	var calls atomic.Int32
	processor := func(ctx context.Context, item int) (int, error) {
		calls.Add(1)
		if item == 0 {
			return 0, errors.New("first item failed")
		}
		return item, nil
	}

	result, err := workflows.ProcessParallel(context.Background(), cfg, []int{0, 1, 2}, processor)
	if err == nil {
		t.Fatal("Expected error with fail-fast, got nil")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 processor call, got %d", calls.Load())
	}
	if len(result.Errors) != 3 {
		t.Fatalf("Expected 3 errors (1 failure, 2 not run), got %d", len(result.Errors))
	}
	if !errors.Is(result.Errors[2].Err, workflows.ErrNotRun) {
		t.Errorf("Expected ErrNotRun for unstarted item, got %v", result.Errors[2].Err)
	}
}

func TestProcessParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := func(ctx context.Context, item int) (int, error) {
		return item, nil
	}

	result, err := workflows.ProcessParallel(ctx, noopConfig(), []int{1, 2, 3}, processor)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if len(result.Results) != 3 {
		t.Errorf("Expected positional results slice of 3, got %d", len(result.Results))
	}
	for i := range 3 {
		if err, failed := result.Failed(i); failed && !errors.Is(err, workflows.ErrNotRun) {
			t.Errorf("Item %d: expected ErrNotRun, got %v", i, err)
		}
	}
}

func TestProcessParallel_UnknownObserver(t *testing.T) {
	cfg := noopConfig()
	cfg.Observer = "does-not-exist"

	_, err := workflows.ProcessParallel(context.Background(), cfg, []int{1}, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})
	if err == nil {
		t.Fatal("Expected observer resolution error, got nil")
	}
}
