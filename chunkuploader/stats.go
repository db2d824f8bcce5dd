package chunkuploader

import (
	"sync"
	"time"
)

// PassStats summarizes one pass over the blocks the service reported as
// missing, from reading its progress report to asking for the next one.
type PassStats struct {
	Pending   int
	Uploaded  int
	Unchanged int
	Bytes     int64
	Direct    bool
	Duration  time.Duration
}

// Stats describes one upload session. Block figures are recorded by the
// workers as blocks land; pass figures once a pass is over.
type Stats struct {
	mu sync.Mutex

	blockTime time.Duration
	slowest   time.Duration
	blocks    int64
	bytes     int64
	passes    []PassStats
}

// NewStats creates the statistics of an empty session.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) blockDone(d time.Duration, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockTime += d
	s.blocks++
	s.bytes += size
	if d > s.slowest {
		s.slowest = d
	}
}

func (s *Stats) passDone(p PassStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes = append(s.passes, p)
}

// Average returns the average transfer time of one block.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks == 0 {
		return 0
	}
	return s.blockTime / time.Duration(s.blocks)
}

// Slowest returns the longest transfer time of one block.
func (s *Stats) Slowest() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slowest
}

// Blocks returns the number of blocks transferred in this session.
func (s *Stats) Blocks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks
}

// Bytes returns the number of bytes transferred in this session.
func (s *Stats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Passes returns the finished passes in order.
func (s *Stats) Passes() []PassStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PassStats(nil), s.passes...)
}

// Throughput returns the bytes per second moved during the finished passes.
// Time spent waiting for the service between passes is not counted.
func (s *Stats) Throughput() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bytes int64
	var took time.Duration
	for _, p := range s.passes {
		bytes += p.Bytes
		took += p.Duration
	}
	if took <= 0 {
		return 0
	}
	return float64(bytes) / took.Seconds()
}
