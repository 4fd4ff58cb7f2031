// Package async runs named tasks on a bounded set of workers.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task[T any] struct {
	Name    string
	Execute func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Name string
	Data T
	Err  error
}

// Pool bounds how many tasks run at once. A Pool holds no state between
// Execute calls and may be shared.
type Pool[T any] struct {
	workerCount int
}

func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{workerCount: workerCount}
}

func run[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	res.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	res.Data, res.Err = task.Execute(ctx)
	return res
}

// Execute runs every task and returns their results keyed by name. Tasks not
// started before ctx is done are reported with ctx.Err().
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) map[string]Result[T] {
	queue := make(chan Task[T])
	results := make(chan Result[T], len(tasks))

	var wg sync.WaitGroup
	workers := min(p.workerCount, len(tasks))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				results <- run(ctx, task)
			}
		}()
	}

send:
	for i, task := range tasks {
		select {
		case queue <- task:
		case <-ctx.Done():
			for _, skipped := range tasks[i:] {
				results <- Result[T]{Name: skipped.Name, Err: ctx.Err()}
			}
			break send
		}
	}
	close(queue)
	wg.Wait()
	close(results)

	out := make(map[string]Result[T], len(tasks))
	for r := range results {
		out[r.Name] = r
	}
	return out
}
