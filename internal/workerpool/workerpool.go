// Package workerpool provides the bounded, order-preserving worker pool
// used by every per-station-parallel stage (spec.md §5), generalized from
// the teacher's orchestrator.Run goroutine/WaitGroup fan-out.
package workerpool

import (
	"context"
	"sync"
)

// DefaultMaxWorkers is the default bound on in-flight station tasks.
const DefaultMaxWorkers = 32

// Pool runs station tasks with bounded parallelism and returns results in
// the same order tasks were submitted, regardless of completion order.
type Pool struct {
	maxWorkers int
}

// New creates a Pool bounded at maxWorkers (falls back to
// DefaultMaxWorkers if maxWorkers <= 0).
func New(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Pool{maxWorkers: maxWorkers}
}

// Task is a unit of per-station work. It should respect ctx cancellation
// at task boundaries (spec.md §5 "cancellation cooperative at task
// boundaries").
type Task func(ctx context.Context, index int) (interface{}, error)

// Run executes n tasks with bounded parallelism and returns their results
// in submission order. A task's error is returned alongside its result at
// the same index; Run itself never returns an error -- callers decide
// whether a per-task error degrades that station or aborts the batch
// (spec.md §7).
func (p *Pool) Run(ctx context.Context, n int, task Task) ([]interface{}, []error) {
	results := make([]interface{}, n)
	errs := make([]error, n)

	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = task(ctx, i)
		}(i)
	}
	wg.Wait()

	return results, errs
}
