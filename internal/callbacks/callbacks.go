// Package callbacks is an ordered registry of observer functions.
package callbacks

import "sync"

// Registry holds functions in registration order. Registering the same
// function twice yields two independent registrations.
type Registry[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[T]
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Add registers fn and returns a handle that removes exactly this
// registration. The handle is idempotent.
func (r *Registry[T]) Add(fn func(T)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, entry[T]{id: id, fn: fn})

	return func() { r.remove(id) }
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// Len reports the number of live registrations.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the registered functions in order. Later Add or cancel
// calls do not affect the returned slice.
func (r *Registry[T]) Snapshot() []func(T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fns := make([]func(T), len(r.entries))
	for i, e := range r.entries {
		fns[i] = e.fn
	}
	return fns
}

// Notify invokes every registered function with v, in order. A panicking
// function is reported through onPanic and does not stop the others.
func (r *Registry[T]) Notify(v T, onPanic func(recovered any)) {
	for _, fn := range r.Snapshot() {
		invoke(fn, v, onPanic)
	}
}

func invoke[T any](fn func(T), v T, onPanic func(any)) {
	defer func() {
		if rec := recover(); rec != nil && onPanic != nil {
			onPanic(rec)
		}
	}()
	fn(v)
}
