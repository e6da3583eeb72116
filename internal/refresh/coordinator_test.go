package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapse_ConcurrentTriggersShareOneRefresh(t *testing.T) {
	var calls atomic.Int32
	var notified []int
	c := New(func(v int) { notified = append(notified, v) })

	release := make(chan struct{})
	fn := func(context.Context) (int, bool, error) {
		calls.Add(1)
		<-release
		return 42, true, nil
	}

	const n = 8
	var wg sync.WaitGroup
	var launched atomic.Int32
	results := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			launched.Add(1)
			results[i], errs[i] = c.Collapse(context.Background(), fn)
		}(i)
	}

	require.Eventually(t, func() bool { return launched.Load() == n && c.Refreshing() }, time.Second, time.Millisecond)
	// Give the remaining goroutines time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
	assert.Equal(t, []int{42}, notified)
	assert.False(t, c.Refreshing())
}

func TestWait_BlocksUntilRefreshCompletes(t *testing.T) {
	c := New[string](nil)
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = c.Run(context.Background(), func(context.Context) (string, bool, error) {
			close(started)
			<-release
			return "new", true, nil
		})
	}()
	<-started

	waited := make(chan struct{})
	go func() {
		assert.NoError(t, c.Wait(context.Background()))
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while refresh in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after refresh completed")
	}
}

func TestWait_ReturnsImmediatelyWhenIdle(t *testing.T) {
	c := New[int](nil)
	assert.NoError(t, c.Wait(context.Background()))
}

func TestWait_HonorsContext(t *testing.T) {
	c := New[int](nil)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = c.Run(context.Background(), func(context.Context) (int, bool, error) {
			close(started)
			<-release
			return 0, false, nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}

func TestRun_FailureReleasesWaiters(t *testing.T) {
	notified := 0
	c := New(func(int) { notified++ })
	boom := errors.New("boom")

	_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Refreshing())
	assert.NoError(t, c.Wait(context.Background()))
	assert.Zero(t, notified)

	// The section is usable again.
	v, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
		return 7, true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, notified)
}

func TestRun_PanicReleasesSection(t *testing.T) {
	c := New[int](nil)

	assert.Panics(t, func() {
		_, _ = c.Run(context.Background(), func(context.Context) (int, bool, error) {
			panic("boom")
		})
	})
	assert.False(t, c.Refreshing())

	_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
		return 1, false, nil
	})
	assert.NoError(t, err)
}

func TestRun_NotFreshSkipsCallback(t *testing.T) {
	notified := 0
	c := New(func(int) { notified++ })

	_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
		return 1, false, nil
	})
	require.NoError(t, err)
	assert.Zero(t, notified)
}

func TestRun_CallbacksFollowRefreshOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	c := New(func(v int) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
	})

	for i := 1; i <= 5; i++ {
		_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
			return i, true, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
}

func TestCollapse_CallerCancellationDoesNotCancelRefresh(t *testing.T) {
	c := New[int](nil)
	release := make(chan struct{})
	var sawCancel atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Collapse(ctx, func(ctx context.Context) (int, bool, error) {
			<-release
			sawCancel.Store(ctx.Err() != nil)
			return 1, true, nil
		})
		done <- err
	}()

	require.Eventually(t, c.Refreshing, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.NoError(t, c.Wait(context.Background()))
	require.Eventually(t, func() bool { return !c.Refreshing() }, time.Second, time.Millisecond)
	assert.False(t, sawCancel.Load())
}

func TestRun_CallbackDoesNotBlockNextRefresh(t *testing.T) {
	var (
		mu    sync.Mutex
		order []int
		ran   atomic.Bool
		c     *Coordinator[int]
	)
	second := make(chan struct{})
	c = New(func(v int) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
		if v != 1 {
			return
		}

		go func() {
			defer close(second)
			_, _ = c.Run(context.Background(), func(context.Context) (int, bool, error) {
				ran.Store(true)
				return 2, true, nil
			})
		}()

		// The queued refresh has left the section, so requests issued from a
		// callback are not held up by it.
		assert.Eventually(t, func() bool { return ran.Load() && !c.Refreshing() }, time.Second, time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, c.Wait(ctx))
	})

	_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
		return 1, true, nil
	})
	require.NoError(t, err)
	<-second

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}

func TestRun_ReentrantRunFromCallback(t *testing.T) {
	var (
		mu    sync.Mutex
		order []int
		inner error
		c     *Coordinator[int]
	)
	c = New(func(v int) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
		if v != 1 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, inner = c.Run(ctx, func(context.Context) (int, bool, error) {
			return 2, true, nil
		})
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
			return 1, true, nil
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh started from a callback never returned")
	}
	require.NoError(t, inner)

	// Later refreshes still deliver.
	_, err := c.Run(context.Background(), func(context.Context) (int, bool, error) {
		return 3, true, nil
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}
