package metadata

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestGate_SerializesRequests(t *testing.T) {
	g := NewGate(0)
	defer g.Close()

	var active, maxActive, calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), func(context.Context) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				calls.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), calls.Load())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestGate_Cooldown(t *testing.T) {
	g := NewGate(30 * time.Millisecond)
	defer g.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))
	}
	// 第一次立即执行，之后每次间隔 cooldown
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestGate_ReturnsFnError(t *testing.T) {
	g := NewGate(0)
	defer g.Close()

	err := g.Do(context.Background(), func(context.Context) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGate_CanceledContextSkipsFn(t *testing.T) {
	g := NewGate(0)
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := g.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestGate_CloseStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := NewGate(10 * time.Millisecond)
	require.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))
	g.Close()
	g.Close()

	err := g.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrGateClosed)
}
