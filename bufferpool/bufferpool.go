// Package bufferpool provides a pool of fixed-size byte buffers shared by
// concurrent block upload workers.
package bufferpool

import (
	"sync"
)

// Pool hands out buffers of exactly one size. It has no upper bound on the
// number of buffers it keeps and is safe for concurrent use.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a pool of buffers of the given size.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, p.size)
		return &buf
	}
	return p
}

// Size returns the configured buffer size.
func (p *Pool) Size() int {
	return p.size
}

// Acquire returns a buffer of length and capacity Size.
// The caller is responsible for calling Release once the buffer is no longer used.
func (p *Pool) Acquire() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Release returns a buffer to the pool. Buffers whose capacity differs from
// Size are dropped.
func (p *Pool) Release(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
