package bufferpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Acquire(t *testing.T) {
	p := New(1024)

	buf := p.Acquire()
	require.NotNil(t, buf)
	assert.Equal(t, 1024, len(buf))
	assert.Equal(t, 1024, cap(buf))
	assert.Equal(t, 1024, p.Size())
}

func TestPool_ReleaseThenAcquire(t *testing.T) {
	p := New(512)

	buf := p.Acquire()
	copy(buf, "block data")
	p.Release(buf[:10])

	again := p.Acquire()
	assert.Equal(t, 512, len(again))
	assert.Equal(t, 512, cap(again))
}

func TestPool_ReleaseMismatchedSize(t *testing.T) {
	p := New(256)

	p.Release(make([]byte, 128))
	p.Release(make([]byte, 0, 1024))
	p.Release(nil)

	for i := 0; i < 10; i++ {
		buf := p.Acquire()
		require.Equal(t, 256, len(buf))
		require.Equal(t, 256, cap(buf))
	}
}

func TestPool_ConcurrentUse(t *testing.T) {
	p := New(64)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := p.Acquire()
				if len(buf) != 64 {
					t.Errorf("unexpected buffer length %d", len(buf))
				}
				buf[0] = byte(n)
				p.Release(buf)
			}
		}(i)
	}
	wg.Wait()
}
