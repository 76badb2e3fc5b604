package workflows

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotRun marks an item the pool never processed, typically because the
// context ended or a fail-fast cancellation stopped the workers first.
var ErrNotRun = errors.New("item was not processed")

// TaskError records the failure of a single item.
type TaskError[TItem any] struct {
	// Index is the position of the item in the input slice.
	Index int
	Item  TItem
	Err   error
}

// ParallelResult holds positional results and the failures among them.
type ParallelResult[TItem, TResult any] struct {
	// Results has one slot per input item; failed slots hold the zero value.
	Results []TResult
	Errors  []TaskError[TItem]
}

// Failed reports whether the item at index i failed or never ran.
func (r ParallelResult[TItem, TResult]) Failed(i int) (error, bool) {
	for _, taskErr := range r.Errors {
		if taskErr.Index == i {
			return taskErr.Err, true
		}
	}
	return nil, false
}

// ParallelError aggregates task failures.
type ParallelError[TItem any] struct {
	Errors []TaskError[TItem]
}

func (e *ParallelError[TItem]) Error() string {
	if len(e.Errors) == 0 {
		return "parallel execution failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("parallel execution failed: item %d: %v",
			e.Errors[0].Index, e.Errors[0].Err,
		)
	}

	errorCounts := make(map[string]int)
	for _, taskErr := range e.Errors {
		errorCounts[taskErr.Err.Error()]++
	}

	msgs := make([]string, 0, len(errorCounts))
	for msg := range errorCounts {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if errorCounts[msgs[i]] != errorCounts[msgs[j]] {
			return errorCounts[msgs[i]] > errorCounts[msgs[j]]
		}
		return msgs[i] < msgs[j]
	})

	parts := make([]string, len(msgs))
	for i, msg := range msgs {
		parts[i] = fmt.Sprintf("'%s' (%d)", msg, errorCounts[msg])
	}

	return fmt.Sprintf(
		"parallel execution failed: %d items failed: %s",
		len(e.Errors), strings.Join(parts, ", "),
	)
}

func (e *ParallelError[TItem]) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, taskErr := range e.Errors {
		errs[i] = taskErr.Err
	}
	return errs
}
