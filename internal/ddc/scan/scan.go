// Package scan fans the initial-checks state machine out across every
// discovered candidate, either sequentially or through a bounded worker
// pool once the candidate count crosses a threshold. While a concurrent
// scan runs, the global verbosity is temporarily reduced so per-probe
// trace from multiple workers doesn't interleave in the output; the
// suppression is restored before Run returns.
package scan

import (
	"context"
	"sync"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/checks"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/log"
)

// DefaultThreshold is the candidate count at or above which checks run
// concurrently rather than one at a time.
const DefaultThreshold = 3

// DefaultWorkers bounds how many initial-checks state machines run at once;
// unlike a goroutine-per-candidate fan-out this stays fixed regardless of
// how many displays were discovered.
const DefaultWorkers = 8

// Task pairs a DisplayRef with the Runner the checks need to probe it.
type Task struct {
	Ref    *model.DisplayRef
	Runner checks.Runner
}

// Options configures one scan pass.
type Options struct {
	Threshold int
	Workers   int
}

// Run executes the initial-checks state machine for every task, either
// sequentially (candidate count below the threshold) or through a bounded
// worker pool (at or above it), and blocks until every task has completed.
func Run(ctx context.Context, tasks []Task, opts Options) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	if len(tasks) < opts.Threshold {
		for _, task := range tasks {
			checks.Run(ctx, task.Runner, task.Ref)
		}
		return
	}

	restore := log.Quiet()
	defer restore()

	workers := opts.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan Task, len(tasks))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range queue {
				checks.Run(ctx, task.Runner, task.Ref)
			}
		}()
	}

	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()
}
