package workpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPool(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		count atomic.Int64
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			count.Inc()
			wg.Done()
		}))
	}
	wg.Wait()
	require.EqualValues(t, 100, count.Load())

	p.Release()
	require.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}

func TestSynchronousPool(t *testing.T) {
	p := NewSynchronous()

	executed := false
	require.NoError(t, p.Submit(func() { executed = true }))
	require.True(t, executed)

	p.Release()
	require.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}
