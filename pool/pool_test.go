package pool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	p := NewPool(3, 8)
	var count int64
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Call(func() {
			atomic.AddInt64(&count, 1)
		}))
	}
	p.Wait()
	assert.Equal(t, int64(100), atomic.LoadInt64(&count))

	require.NoError(t, p.Call(func() {
		atomic.AddInt64(&count, 1)
	}))
	p.Cancel()
	assert.Equal(t, int64(101), atomic.LoadInt64(&count))
	assert.Equal(t, ErrPoolClosed, p.Call(func() {}))
	p.Cancel()
}
