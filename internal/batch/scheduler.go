// Package batch runs groups of tasks with a fixed concurrency ceiling. All
// tasks of one batch settle before the next batch starts, which bounds peak
// concurrency and serves as the backpressure mechanism protecting the
// provider from a thundering herd of parallel requests.
package batch

import (
	"context"
	"sort"
	"sync"

	"github.com/testweaver-ai/testweaver/internal/logger"
	"github.com/testweaver-ai/testweaver/internal/progress"
)

// Task is one unit of work identified by its position in the original order.
type Task[T any] struct {
	Index int
	Run   func(ctx context.Context) (T, error)
}

// Result is the exactly-once terminal outcome of one task: Output on
// success, Err on failure, never both set meaningfully.
type Result[T any] struct {
	Index  int
	Output T
	Err    error
}

// Split partitions tasks into batches of at most maxConcurrent, preserving
// order; the last batch may be smaller.
func Split[T any](tasks []Task[T], maxConcurrent int) [][]Task[T] {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var batches [][]Task[T]
	for start := 0; start < len(tasks); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(tasks) {
			end = len(tasks)
		}
		batches = append(batches, tasks[start:end])
	}
	return batches
}

// ProcessBatches runs each batch's tasks concurrently and waits for all of
// them to settle before advancing to the next batch. A task failure does not
// cancel siblings; its Result carries the error and processing continues.
// After every settled task, onProgress is invoked with the running counts.
// The returned results are sorted by task index regardless of completion
// order.
func ProcessBatches[T any](ctx context.Context, batches [][]Task[T], onProgress progress.Callback) []Result[T] {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	results := make([]Result[T], 0, total)
	processed := 0

	var mu sync.Mutex

	for i, tasks := range batches {
		logger.Debug("batch: starting batch %d/%d with %d tasks", i+1, len(batches), len(tasks))

		var wg sync.WaitGroup
		for _, task := range tasks {
			wg.Add(1)
			go func(task Task[T]) {
				defer wg.Done()

				output, err := task.Run(ctx)
				if err != nil {
					logger.Warn("batch: task %d failed: %v", task.Index, err)
				}

				// Holding the lock through the dispatch keeps progress
				// updates ordered even when tasks settle concurrently
				mu.Lock()
				results = append(results, Result[T]{Index: task.Index, Output: output, Err: err})
				processed++
				progress.Dispatch(onProgress, progress.Update{
					Processed:  processed,
					Total:      total,
					Percentage: progress.Percent(processed, total),
				})
				mu.Unlock()
			}(task)
		}
		wg.Wait()
	}

	sort.Slice(results, func(a, b int) bool {
		return results[a].Index < results[b].Index
	})
	return results
}
