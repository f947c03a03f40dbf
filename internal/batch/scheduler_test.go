package batch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testweaver-ai/testweaver/internal/progress"
)

func makeTasks(n int, run func(index int) (string, error)) []Task[string] {
	tasks := make([]Task[string], n)
	for i := 0; i < n; i++ {
		index := i
		tasks[i] = Task[string]{
			Index: index,
			Run: func(ctx context.Context) (string, error) {
				return run(index)
			},
		}
	}
	return tasks
}

func TestSplit(t *testing.T) {
	tasks := makeTasks(10, func(i int) (string, error) { return "", nil })

	batches := Split(tasks, 4)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[1], 4)
	assert.Len(t, batches[2], 2)
}

func TestProcessBatchesOrderIndependentOfCompletion(t *testing.T) {
	tasks := makeTasks(9, func(i int) (string, error) {
		// Random sleep scrambles completion order within a batch
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		return fmt.Sprintf("out-%d", i), nil
	})

	results := ProcessBatches(context.Background(), Split(tasks, 3), nil)

	require.Len(t, results, 9)
	for i, result := range results {
		assert.Equal(t, i, result.Index, "results sorted by task index")
		assert.Equal(t, fmt.Sprintf("out-%d", i), result.Output)
		assert.NoError(t, result.Err)
	}
}

func TestProcessBatchesConcurrencyBound(t *testing.T) {
	const maxConcurrent = 3

	var inFlight atomic.Int32
	var peak atomic.Int32

	tasks := makeTasks(10, func(i int) (string, error) {
		current := inFlight.Add(1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return "", nil
	})

	ProcessBatches(context.Background(), Split(tasks, maxConcurrent), nil)

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrent),
		"no more than maxConcurrent tasks unsettled at once")
}

func TestProcessBatchesFailureDoesNotCancelSiblings(t *testing.T) {
	var succeeded atomic.Int32

	tasks := makeTasks(5, func(i int) (string, error) {
		if i == 2 {
			return "", fmt.Errorf("network failure")
		}
		succeeded.Add(1)
		return fmt.Sprintf("ok-%d", i), nil
	})

	results := ProcessBatches(context.Background(), Split(tasks, 5), nil)

	require.Len(t, results, 5)
	assert.Equal(t, int32(4), succeeded.Load(), "siblings of a failed task still run")
	assert.Error(t, results[2].Err)
	for _, i := range []int{0, 1, 3, 4} {
		assert.NoError(t, results[i].Err, "task %d", i)
	}
}

func TestProcessBatchesProgress(t *testing.T) {
	tasks := makeTasks(6, func(i int) (string, error) { return "", nil })

	var mu sync.Mutex
	var updates []progress.Update

	ProcessBatches(context.Background(), Split(tasks, 2), func(u progress.Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	require.Len(t, updates, 6, "one progress update per settled task")
	last := updates[len(updates)-1]
	assert.Equal(t, 6, last.Processed)
	assert.Equal(t, 6, last.Total)
	assert.InDelta(t, 100.0, last.Percentage, 0.01)

	// Processed counts are monotonically non-decreasing
	prev := 0
	for _, u := range updates {
		assert.GreaterOrEqual(t, u.Processed, prev)
		prev = u.Processed
	}
}

func TestProcessBatchesSequentialAcrossBatches(t *testing.T) {
	var order []int
	var mu sync.Mutex

	tasks := makeTasks(6, func(i int) (string, error) {
		mu.Lock()
		order = append(order, i)
		mu.Unlock()
		return "", nil
	})

	ProcessBatches(context.Background(), Split(tasks, 3), nil)

	require.Len(t, order, 6)
	// Every task of batch one starts before any task of batch two
	firstBatch := map[int]bool{0: true, 1: true, 2: true}
	for _, idx := range order[:3] {
		assert.True(t, firstBatch[idx], "task %d from batch two ran before batch one settled", idx)
	}
}
