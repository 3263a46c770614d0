package authflow

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Mutex serializes callers that drive one [Client] from several places, such as a UI
// handler and a background job. Unlike sync.Mutex, Lock honors ctx.
//
// The client does not need it: the machine already processes events one at a time.
type Mutex struct {
	sem *semaphore.Weighted
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the mutex is acquired or ctx ends.
func (m *Mutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// TryLock acquires the mutex only if it is free.
func (m *Mutex) TryLock() bool {
	return m.sem.TryAcquire(1)
}

// Unlock releases the mutex. Unlocking an unlocked Mutex panics.
func (m *Mutex) Unlock() {
	m.sem.Release(1)
}

// Do runs fn while holding the mutex and returns its error.
func (m *Mutex) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.Lock(ctx); err != nil {
		return err
	}
	defer m.Unlock()
	return fn(ctx)
}
