// Package refresh serializes credential refreshes for a single client.
//
// At most one refresh runs at a time. Concurrent triggers that observe the
// same stale credential collapse into one physical refresh, and ordinary
// requests that arrive while a refresh is in flight wait for it to finish.
package refresh

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Func performs one refresh. fresh reports whether value is a newly obtained
// credential; a Func that finds nothing to do returns fresh == false and no
// callbacks fire.
type Func[T any] func(ctx context.Context) (value T, fresh bool, err error)

const collapseKey = "refresh"

// Coordinator guards the refresh critical section.
type Coordinator[T any] struct {
	section sync.Mutex
	group   singleflight.Group

	mu         sync.Mutex
	refreshing bool
	idle       chan struct{}

	// Fresh values are queued inside the section, so they are delivered in
	// refresh order. One goroutine at a time drains the queue outside the
	// section; a Run that finds a drain in progress leaves its value to it.
	outbox     sync.Mutex
	pending    []T
	delivering bool
	onFresh    func(T)
}

// New returns a coordinator that calls onFresh with every fresh value.
// onFresh runs after waiters have been released and outside the critical
// section. An onFresh that starts another refresh does not wait for its own
// delivery; the new value is delivered once the current onFresh returns.
func New[T any](onFresh func(T)) *Coordinator[T] {
	return &Coordinator[T]{onFresh: onFresh}
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator[T]) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Wait blocks until no refresh is in flight or ctx is done.
func (c *Coordinator[T]) Wait(ctx context.Context) error {
	c.mu.Lock()
	if !c.refreshing {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes fn exclusively. Callers queue behind any refresh already in
// flight.
func (c *Coordinator[T]) Run(ctx context.Context, fn Func[T]) (T, error) {
	var (
		value T
		err   error
	)

	func() {
		c.section.Lock()
		c.begin()
		defer func() {
			c.end()
			c.section.Unlock()
		}()

		var fresh bool
		value, fresh, err = fn(ctx)
		if err == nil && fresh && c.onFresh != nil {
			c.enqueue(value)
		}
	}()

	c.deliver()
	return value, err
}

// Collapse runs fn unless an identical collapsed refresh is already in
// flight, in which case it shares that refresh's outcome. The shared refresh
// is not cancelled when one of its callers gives up.
func (c *Coordinator[T]) Collapse(ctx context.Context, fn Func[T]) (T, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(collapseKey, func() (any, error) {
		return c.Run(detached, fn)
	})

	select {
	case res := <-ch:
		v, _ := res.Val.(T)
		return v, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Coordinator[T]) enqueue(v T) {
	c.outbox.Lock()
	defer c.outbox.Unlock()
	c.pending = append(c.pending, v)
}

// deliver drains pending values unless another goroutine already is.
func (c *Coordinator[T]) deliver() {
	c.outbox.Lock()
	if c.delivering || len(c.pending) == 0 {
		c.outbox.Unlock()
		return
	}
	c.delivering = true
	c.outbox.Unlock()

	defer func() {
		c.outbox.Lock()
		c.delivering = false
		c.outbox.Unlock()
	}()

	for {
		c.outbox.Lock()
		if len(c.pending) == 0 {
			c.outbox.Unlock()
			return
		}
		v := c.pending[0]
		var zero T
		c.pending[0] = zero
		c.pending = c.pending[1:]
		c.outbox.Unlock()

		c.onFresh(v)
	}
}

func (c *Coordinator[T]) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = true
	c.idle = make(chan struct{})
}

func (c *Coordinator[T]) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	close(c.idle)
}
