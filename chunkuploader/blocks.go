package chunkuploader

import (
	"fmt"
)

// Plan splits a file into ceil(fileSize/blockSize) contiguous blocks numbered
// from 0. Every block has blockSize bytes except possibly the last one.
func Plan(fileSize, blockSize int64) ([]Block, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", blockSize)
	}
	if fileSize < 0 {
		return nil, fmt.Errorf("invalid file size %d", fileSize)
	}

	numBlocks := (fileSize + blockSize - 1) / blockSize
	blocks := make([]Block, numBlocks)
	for i := int64(0); i < numBlocks; i++ {
		offset := i * blockSize
		size := blockSize
		if remaining := fileSize - offset; remaining < size {
			size = remaining
		}
		blocks[i] = Block{ID: i, Offset: offset, Size: size}
	}
	return blocks, nil
}

// resolvePending maps the block ids reported by the service onto the plan.
func resolvePending(pending []Block, plan []Block) ([]Block, error) {
	blocks := make([]Block, 0, len(pending))
	seen := make(map[int64]bool, len(pending))
	for _, p := range pending {
		if p.ID < 0 || p.ID >= int64(len(plan)) {
			return nil, fmt.Errorf("service reported unknown block %d (file has %d blocks)", p.ID, len(plan))
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		blocks = append(blocks, plan[p.ID])
	}
	return blocks, nil
}

// splitRanges cuts the byte ranges of a direct transfer into blocks of at most
// blockSize bytes, numbered in order.
func splitRanges(ranges []ByteRange, fileSize, blockSize int64) ([]Block, error) {
	if len(ranges) == 0 {
		return Plan(fileSize, blockSize)
	}

	var blocks []Block
	for _, r := range ranges {
		if r.Offset < 0 || r.Length <= 0 || r.Offset+r.Length > fileSize {
			return nil, fmt.Errorf("invalid direct upload range [%d, %d) for a file of %d bytes",
				r.Offset, r.Offset+r.Length, fileSize)
		}
		for offset := r.Offset; offset < r.Offset+r.Length; offset += blockSize {
			size := blockSize
			if end := r.Offset + r.Length; offset+size > end {
				size = end - offset
			}
			blocks = append(blocks, Block{ID: int64(len(blocks)), Offset: offset, Size: size})
		}
	}
	return blocks, nil
}
