package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BlockingPool runs blocking work on a bounded set of goroutines separate
// from the callers'.
type BlockingPool struct {
	size    int64
	sem     *semaphore.Weighted
	mu      sync.RWMutex
	closed  bool
	running sync.WaitGroup
}

func NewBlockingPool(size int) *BlockingPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &BlockingPool{
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

func (p *BlockingPool) Size() int {
	return int(p.size)
}

// Run waits for a free slot, runs task on its own goroutine and returns the
// task's result. Only the wait for a slot observes ctx: once started, the
// task gets a context without ctx's cancellation and runs to completion. A
// panic inside task is returned as *PanicError.
func (p *BlockingPool) Run(ctx context.Context, task func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.sem.Release(1)
		return ErrPoolClosed
	}
	p.running.Add(1)
	p.mu.RUnlock()

	done := make(chan error, 1)
	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer p.running.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		done <- task(taskCtx)
	}()
	return <-done
}

func (p *BlockingPool) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close rejects new tasks and waits for running ones until ctx is done.
func (p *BlockingPool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	finished := make(chan struct{})
	go func() {
		p.running.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
