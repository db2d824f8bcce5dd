package chunkuploader

import (
	"time"

	"github.com/docker/go-units"
	"github.com/microsoft/PackageUploader-sub002/bufferpool"
)

const (
	// DefaultMaxParallelism is the default number of block uploads in flight.
	DefaultMaxParallelism = 24
	// DefaultBlockSize is the default size of one block.
	DefaultBlockSize = 4 * units.MiB
	// DefaultIdlePollInterval paces progress queries when the service gives no
	// request delay and the previous pass transferred nothing.
	DefaultIdlePollInterval = time.Second
)

// BufferPool supplies the block buffers. *bufferpool.Pool implements it.
type BufferPool interface {
	Size() int
	Acquire() []byte
	Release(buf []byte)
}

// Config holds configuration for the chunk uploader.
type Config struct {
	// MaxParallelism is the maximum number of concurrent block uploads.
	// Default: 24
	MaxParallelism int

	// BlockSize is the size of every block except possibly the last one.
	// Default: 4 MiB
	BlockSize int64

	// IdlePollInterval is waited between progress queries when the service
	// sent no request delay and nothing was uploaded in the last pass.
	// Default: 1 second
	IdlePollInterval time.Duration

	// Delta asks the service for a delta upload against the previously
	// uploaded version of the file.
	Delta bool

	// DeltaSelector decides which blocks changed when the service offers a
	// delta upload. Default: HashDeltaSelector
	DeltaSelector DeltaSelector

	// BufferPool is shared by the block workers. When nil the uploader
	// creates a pool of BlockSize buffers for its own session.
	BufferPool BufferPool

	// Progress, when set, is called after every uploaded block. Calls are
	// serialized.
	Progress func(Progress)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxParallelism:   DefaultMaxParallelism,
		BlockSize:        DefaultBlockSize,
		IdlePollInterval: DefaultIdlePollInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxParallelism <= 0 {
		c.MaxParallelism = DefaultMaxParallelism
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.IdlePollInterval <= 0 {
		c.IdlePollInterval = DefaultIdlePollInterval
	}
	if c.DeltaSelector == nil {
		c.DeltaSelector = HashDeltaSelector{}
	}
	if c.BufferPool == nil {
		c.BufferPool = bufferpool.New(int(c.BlockSize))
	}
	return c
}
