package burst

import (
	"context"
	"sync"
)

// Executor collects a batch of tasks and waits for them together.
type Executor struct {
	pool      *Pool
	multicore bool

	mu       sync.Mutex
	futures  []*Future[struct{}]
	firstErr error
}

// Multicore reports whether tasks are dispatched to the pool.
func (e *Executor) Multicore() bool { return e.multicore }

// Queue schedules task. Inline executors run it before returning.
func (e *Executor) Queue(task Task) *Executor {
	if !e.multicore {
		if err := task(context.Background()); err != nil {
			e.mu.Lock()
			if e.firstErr == nil {
				e.firstErr = err
			}
			e.mu.Unlock()
		}
		return e
	}

	f := e.pool.Go(task)
	e.mu.Lock()
	e.futures = append(e.futures, f)
	e.mu.Unlock()
	return e
}

// QueueAll schedules every task.
func (e *Executor) QueueAll(tasks ...Task) *Executor {
	for _, t := range tasks {
		e.Queue(t)
	}
	return e
}

// Complete waits for all queued tasks, reports the first failure to the
// pool's error handler, and resets the executor for reuse.
func (e *Executor) Complete() error {
	e.mu.Lock()
	futures := e.futures
	firstErr := e.firstErr
	e.futures = nil
	e.firstErr = nil
	e.mu.Unlock()

	for _, f := range futures {
		if _, err := f.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		e.pool.onError(firstErr)
	}
	return firstErr
}
