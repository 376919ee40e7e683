package engine

import (
	"context"
	"sync"
)

// job is the unit of work dispatched to a worker. index is the job's
// submission position, so results come back in order.
type job[T any] struct {
	index   int
	payload T
}

// workerPool is a fixed-size goroutine pool over a bounded batch of jobs.
// Submit is called from a single goroutine; each worker writes only the
// result slots of the jobs it took.
type workerPool[T, R any] struct {
	ctx     context.Context
	queue   chan job[T]
	process func(ctx context.Context, t T) (R, error)
	wg      sync.WaitGroup

	next    int
	results []R
	errs    []error
	done    []bool
}

// newWorkerPool creates and starts a pool with n goroutines accepting up to
// size jobs.
func newWorkerPool[T, R any](ctx context.Context, n, size int, fn func(context.Context, T) (R, error)) *workerPool[T, R] {
	p := &workerPool[T, R]{
		ctx:     ctx,
		queue:   make(chan job[T], size),
		process: fn,
		results: make([]R, size),
		errs:    make([]error, size),
		done:    make([]bool, size),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *workerPool[T, R]) run(ctx context.Context) {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			p.results[j.index], p.errs[j.index] = p.process(ctx, j.payload)
			p.done[j.index] = true
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues a job without blocking (returns false if full).
func (p *workerPool[T, R]) Submit(t T) bool {
	if p.next >= cap(p.queue) {
		return false
	}
	select {
	case p.queue <- job[T]{index: p.next, payload: t}:
		p.next++
		return true
	default:
		return false
	}
}

// Drain closes the queue, waits for all workers to finish and returns the
// results in submission order. Jobs abandoned on cancellation carry ctx.Err().
func (p *workerPool[T, R]) Drain() ([]R, []error) {
	close(p.queue)
	p.wg.Wait()
	for i := 0; i < p.next; i++ {
		if !p.done[i] {
			p.errs[i] = p.ctx.Err()
		}
	}
	return p.results[:p.next], p.errs[:p.next]
}
