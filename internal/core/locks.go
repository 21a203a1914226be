package core

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RepositoryLocks holds one mutual-exclusion handle per repository name.
// Handles are created on first use and kept for the life of the process;
// names are bounded by the configuration.
type RepositoryLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func NewRepositoryLocks() *RepositoryLocks {
	return &RepositoryLocks{locks: map[string]*semaphore.Weighted{}}
}

// Acquire blocks until name's lock is held or ctx is done. The returned
// release func is safe to call more than once.
func (l *RepositoryLocks) Acquire(ctx context.Context, name string) (func(), error) {
	handle := l.handle(name)
	if err := handle.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { handle.Release(1) })
	}, nil
}

func (l *RepositoryLocks) handle(name string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	handle, ok := l.locks[name]
	if !ok {
		handle = semaphore.NewWeighted(1)
		l.locks[name] = handle
	}
	return handle
}
