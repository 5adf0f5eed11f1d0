// Package workerpool provides a bounded goroutine pool used to parse
// tool output files in parallel. Results come back in input order so
// that parallel runs produce the same output as sequential ones.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPanic is wrapped by the error recorded for a task that panicked.
var ErrPanic = errors.New("workerpool: task panicked")

// Pool manages a fixed pool of worker goroutines.
type Pool struct {
	workers int32
	tasks   chan func()
	running int32
	closed  int32
	wg      sync.WaitGroup
}

// New creates a pool with the specified number of workers.
// Workers are started lazily when tasks are submitted.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		workers: int32(workers),
		tasks:   make(chan func(), workers*4),
	}
}

// Submit queues a task, starting a worker if the pool is below capacity.
// It blocks while the queue is full and returns false once the pool is closed.
func (p *Pool) Submit(task func()) bool {
	if atomic.LoadInt32(&p.closed) == 1 {
		return false
	}

	for {
		running := atomic.LoadInt32(&p.running)
		if running >= p.workers {
			break
		}
		if atomic.CompareAndSwapInt32(&p.running, running, running+1) {
			p.wg.Add(1)
			go p.worker()
			break
		}
	}

	p.tasks <- task
	return true
}

func (p *Pool) worker() {
	defer func() {
		atomic.AddInt32(&p.running, -1)
		p.wg.Done()
	}()
	for task := range p.tasks {
		if task != nil {
			task()
		}
	}
}

// Running returns the current number of running workers.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Cap returns the worker capacity.
func (p *Pool) Cap() int {
	return int(atomic.LoadInt32(&p.workers))
}

// Close waits for queued tasks to finish and stops the workers.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// IsClosed returns true if the pool is closed.
func (p *Pool) IsClosed() bool {
	return atomic.LoadInt32(&p.closed) == 1
}

// Result is the outcome of one Map item.
type Result[R any] struct {
	Value R
	Err   error
}

// Map applies fn to each item in parallel and returns one Result per item,
// in input order. A panic inside fn is recovered and reported as that
// item's error (wrapping ErrPanic) instead of taking the process down.
// Items not started before ctx is done get ctx.Err().
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))

	for i, item := range items {
		idx := i
		val := item
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[idx].Err = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				results[idx].Err = err
				return
			}
			results[idx].Value, results[idx].Err = fn(ctx, val)
		}
		if !p.Submit(task) {
			results[idx].Err = errors.New("workerpool: pool closed")
			wg.Done()
		}
	}

	wg.Wait()
	return results
}
