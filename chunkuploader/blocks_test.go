package chunkuploader

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_PartitionsFile(t *testing.T) {
	cases := [][2]int64{
		{0, 4},
		{1, 4},
		{4, 4},
		{5, 4},
		{100 * 1024 * 1024, 4 * 1024 * 1024},
		{100*1024*1024 + 1, 4 * 1024 * 1024},
		{7, 1},
	}
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		cases = append(cases, [2]int64{rnd.Int63n(1 << 30), rnd.Int63n(1<<22) + 1})
	}

	for _, c := range cases {
		fileSize, blockSize := c[0], c[1]
		blocks, err := Plan(fileSize, blockSize)
		require.NoError(t, err)

		expected := fileSize / blockSize
		if fileSize%blockSize != 0 {
			expected++
		}
		require.Len(t, blocks, int(expected), "file %d, block %d", fileSize, blockSize)

		var next, sum int64
		for i, block := range blocks {
			assert.Equal(t, int64(i), block.ID)
			assert.Equal(t, next, block.Offset, "gap or overlap before block %d", i)
			assert.True(t, block.Size > 0 && block.Size <= blockSize)
			if i < len(blocks)-1 {
				assert.Equal(t, blockSize, block.Size)
			}
			next = block.Offset + block.Size
			sum += block.Size
		}
		assert.Equal(t, fileSize, sum)
	}
}

func TestPlan_InvalidInput(t *testing.T) {
	_, err := Plan(10, 0)
	assert.Error(t, err)

	_, err = Plan(-1, 4)
	assert.Error(t, err)
}

func TestResolvePending(t *testing.T) {
	plan, err := Plan(10, 4)
	require.NoError(t, err)

	blocks, err := resolvePending([]Block{{ID: 2}, {ID: 0}, {ID: 2}}, plan)
	require.NoError(t, err)
	assert.Equal(t, []Block{{ID: 2, Offset: 8, Size: 2}, {ID: 0, Offset: 0, Size: 4}}, blocks)

	_, err = resolvePending([]Block{{ID: 3}}, plan)
	assert.Error(t, err)
}

func TestSplitRanges(t *testing.T) {
	blocks, err := splitRanges([]ByteRange{{Offset: 2, Length: 5}, {Offset: 20, Length: 3}}, 30, 4)
	require.NoError(t, err)
	assert.Equal(t, []Block{
		{ID: 0, Offset: 2, Size: 4},
		{ID: 1, Offset: 6, Size: 1},
		{ID: 2, Offset: 20, Size: 3},
	}, blocks)

	blocks, err = splitRanges(nil, 9, 4)
	require.NoError(t, err)
	assert.Len(t, blocks, 3)

	_, err = splitRanges([]ByteRange{{Offset: 28, Length: 5}}, 30, 4)
	assert.Error(t, err)
}
