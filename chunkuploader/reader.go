package chunkuploader

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// BlockReader reads block contents into pooled buffers.
// Safe for concurrent reads.
type BlockReader struct {
	source io.ReaderAt
	size   int64
	pool   BufferPool
}

// NewBlockReader creates a reader over size bytes of source.
func NewBlockReader(source io.ReaderAt, size int64, pool BufferPool) *BlockReader {
	return &BlockReader{source: source, size: size, pool: pool}
}

// Size returns the size of the underlying file.
func (r *BlockReader) Size() int64 {
	return r.size
}

// Read returns the contents of block in a buffer acquired from the pool, and
// the function that gives the buffer back. release must be called exactly
// once, also when Read fails.
func (r *BlockReader) Read(block Block) (data []byte, release func(), err error) {
	buf, release := r.acquire(block.Size)

	if block.Offset < 0 || block.Size < 0 || block.Offset+block.Size > r.size {
		return nil, release, fmt.Errorf("block %d [%d, %d) is outside of the file (%d bytes)",
			block.ID, block.Offset, block.Offset+block.Size, r.size)
	}

	data = buf[:block.Size]
	n, err := r.source.ReadAt(data, block.Offset)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == block.Size) {
		return nil, release, fmt.Errorf("read block %d: %w", block.ID, err)
	}
	return data, release, nil
}

// acquire returns a pooled buffer, or a one-off buffer for blocks larger than
// the pool's buffers, with the function that gives it back.
func (r *BlockReader) acquire(size int64) ([]byte, func()) {
	if size > int64(r.pool.Size()) {
		return make([]byte, size), func() {}
	}
	buf := r.pool.Acquire()
	return buf, func() { r.pool.Release(buf) }
}

// openFile opens path for block reads.
func openFile(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return file, info.Size(), nil
}
