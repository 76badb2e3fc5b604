package workflows

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/tailored-agentic-units/incidentdesk/observability"
	"github.com/tailored-agentic-units/incidentdesk/orchestrate/config"
)

// TaskProcessor processes a single item and returns a result.
//
// Each item is processed independently; a processor never sees the results
// of its siblings. Tool batches use it to run one tool call per item, and
// the multi-incident lookup uses it to fetch one record per item.
type TaskProcessor[TItem, TResult any] func(
	ctx context.Context,
	item TItem,
) (TResult, error)

type indexedItem[TItem any] struct {
	index int
	item  TItem
}

type indexedResult[TResult any] struct {
	index  int
	result TResult
	err    error
}

// ProcessParallel runs processor over items on a bounded worker pool.
//
// Results are positional: Results[i] belongs to items[i], whatever order the
// workers finished in. An item whose processor failed, or that never ran
// because ctx ended first, keeps the zero TResult and appears in Errors with
// its index.
//
// Worker count:
//   - MaxWorkers > 0: that many workers, capped at len(items)
//   - MaxWorkers = 0: min(NumCPU*2, WorkerCap, len(items))
//
// With FailFast the first failure cancels the remaining work and the call
// returns a *ParallelError. Without it every item runs, and an error is
// returned only when all of them failed. A cancelled ctx always yields an
// error wrapping ctx.Err().
func ProcessParallel[TItem, TResult any](
	ctx context.Context,
	cfg config.ParallelConfig,
	items []TItem,
	processor TaskProcessor[TItem, TResult],
) (ParallelResult[TItem, TResult], error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return ParallelResult[TItem, TResult]{}, fmt.Errorf("failed to resolve observer: %w", err)
	}

	workerCount := calculateWorkerCount(cfg.MaxWorkers, cfg.WorkerCap, len(items))

	observability.Emit(ctx, observer, EventParallelStart, observability.LevelVerbose, "workflows.ProcessParallel", map[string]any{
		"item_count":   len(items),
		"worker_count": workerCount,
		"fail_fast":    cfg.FailFast(),
	})

	result := ParallelResult[TItem, TResult]{
		Results: make([]TResult, len(items)),
		Errors:  []TaskError[TItem]{},
	}

	if len(items) > 0 {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		workQueue := make(chan indexedItem[TItem], len(items))
		resultChannel := make(chan indexedResult[TResult], len(items))

		for i, item := range items {
			workQueue <- indexedItem[TItem]{index: i, item: item}
		}
		close(workQueue)

		var wg sync.WaitGroup
		for i := range workerCount {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				processWorker(runCtx, workerID, workQueue, resultChannel, processor, observer, cfg.FailFast(), cancel)
			}(i)
		}
		wg.Wait()
		close(resultChannel)

		collectResults(resultChannel, items, &result, ctx.Err())
	}

	failed := len(result.Errors) > 0

	observability.Emit(ctx, observer, EventParallelComplete, observability.LevelVerbose, "workflows.ProcessParallel", map[string]any{
		"items_processed": len(items) - len(result.Errors),
		"items_failed":    len(result.Errors),
		"error":           failed,
	})

	if ctx.Err() != nil {
		return result, fmt.Errorf("parallel execution cancelled: %w", ctx.Err())
	}
	if failed && (cfg.FailFast() || len(result.Errors) == len(items)) {
		return result, &ParallelError[TItem]{Errors: result.Errors}
	}
	return result, nil
}

// calculateWorkerCount determines the worker pool size.
func calculateWorkerCount(maxWorkers, workerCap, itemCount int) int {
	workers := maxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
		if workerCap > 0 {
			workers = min(workers, workerCap)
		}
	}
	workers = min(workers, itemCount)

	if workers <= 0 {
		workers = 1
	}
	return workers
}

// processWorker drains workQueue until it closes or ctx ends.
// Items left in the queue after cancellation are never processed; the
// collector reports them as cancelled.
func processWorker[TItem, TResult any](
	ctx context.Context,
	workerID int,
	workQueue <-chan indexedItem[TItem],
	resultChannel chan<- indexedResult[TResult],
	processor TaskProcessor[TItem, TResult],
	observer observability.Observer,
	failFast bool,
	cancel context.CancelFunc,
) {
	for {
		if ctx.Err() != nil {
			return
		}

		work, ok := <-workQueue
		if !ok {
			return
		}

		observability.Emit(ctx, observer, EventWorkerStart, observability.LevelVerbose, "workflows.ProcessParallel", map[string]any{
			"worker_id":  workerID,
			"item_index": work.index,
		})

		result, err := processor(ctx, work.item)

		observability.Emit(ctx, observer, EventWorkerComplete, observability.LevelVerbose, "workflows.ProcessParallel", map[string]any{
			"worker_id":  workerID,
			"item_index": work.index,
			"error":      err != nil,
		})

		resultChannel <- indexedResult[TResult]{index: work.index, result: result, err: err}
		if err != nil && failFast {
			cancel()
			return
		}
	}
}

// collectResults places every reported result at its item index and records
// an error for each item that failed or never reported.
func collectResults[TItem, TResult any](
	resultChannel <-chan indexedResult[TResult],
	items []TItem,
	result *ParallelResult[TItem, TResult],
	cancelErr error,
) {
	reported := make([]bool, len(items))
	errs := make(map[int]error)

	for r := range resultChannel {
		reported[r.index] = true
		if r.err != nil {
			errs[r.index] = r.err
			continue
		}
		result.Results[r.index] = r.result
	}

	for i := range items {
		err, failed := errs[i]
		if !reported[i] {
			err, failed = ErrNotRun, true
			if cancelErr != nil {
				err = fmt.Errorf("%w: %w", ErrNotRun, cancelErr)
			}
		}
		if failed {
			result.Errors = append(result.Errors, TaskError[TItem]{Index: i, Item: items[i], Err: err})
		}
	}
}
