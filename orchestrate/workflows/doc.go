// Package workflows provides the bounded worker pool used wherever the
// service fans out independent upstream work.
//
// ProcessParallel is generic over item and result types and keeps results
// positional, so callers can pair every result with the request that
// produced it:
//
//	calls := []protocol.ToolCall{...}
//	result, _ := workflows.ProcessParallel(ctx, config.DefaultParallelConfig(), calls, run)
//	for i := range calls {
//	    if err, failed := result.Failed(i); failed {
//	        ...
//	    }
//	    use(result.Results[i])
//	}
//
// The pool never starts more workers than there are items, and a cancelled
// context stops workers from picking up further items; items that were never
// started are reported with ErrNotRun.
package workflows
