// Package optimistic holds a value that can be changed locally ahead of a
// remote write and reverted if the write fails.
package optimistic

import (
	"errors"
	"sync"
)

var ErrPending = errors.New("an update is already pending")

// Value is safe for concurrent use. At most one mutation may be in flight.
type Value[T any] struct {
	mu    sync.Mutex
	value T
	prior *T
}

func New[T any](v T) *Value[T] {
	return &Value[T]{value: v}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

func (v *Value[T]) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.prior != nil
}

// Apply shows next immediately and keeps the current value for Rollback.
func (v *Value[T]) Apply(next T) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.prior != nil {
		return ErrPending
	}
	prior := v.value
	v.prior = &prior
	v.value = next
	return nil
}

// Commit settles the pending mutation with the value the server wrote.
func (v *Value[T]) Commit(server T) {
	v.mu.Lock()
	v.value = server
	v.prior = nil
	v.mu.Unlock()
}

// Settle finishes the pending mutation with the value the server wrote and
// returns what the Value now holds. When a Refresh overtook the mutation, the
// refreshed value stays unless newer(server, current) reports the write as
// the more recent one.
func (v *Value[T]) Settle(server T, newer func(server, current T) bool) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.prior != nil || newer(server, v.value) {
		v.value = server
	}
	v.prior = nil
	return v.value
}

// Rollback restores the value held before Apply. It is a no-op when nothing
// is pending, including after a Refresh overtook the mutation.
func (v *Value[T]) Rollback() {
	v.mu.Lock()
	if v.prior != nil {
		v.value = *v.prior
		v.prior = nil
	}
	v.mu.Unlock()
}

// Refresh overwrites the value with authoritative state and discards any
// pending mutation.
func (v *Value[T]) Refresh(authoritative T) {
	v.mu.Lock()
	v.value = authoritative
	v.prior = nil
	v.mu.Unlock()
}
