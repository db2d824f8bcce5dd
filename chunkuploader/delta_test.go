package chunkuploader

import (
	"bytes"
	"context"
	"testing"

	"github.com/microsoft/PackageUploader-sub002/bufferpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeltaSelector(t *testing.T) {
	data := testData(30)
	reader := NewBlockReader(bytes.NewReader(data), 30, bufferpool.New(10))
	plan, err := Plan(30, 10)
	require.NoError(t, err)

	hashes, err := BlockHashes(context.Background(), reader, plan)
	require.NoError(t, err)
	hashes[1] = "c29tZXRoaW5nIGVsc2U="

	tests := []struct {
		name          string
		params        DeltaUploadParameters
		wantChanged   []int64
		wantUnchanged []int64
	}{
		{
			name:          "hash mismatch",
			params:        DeltaUploadParameters{BlockSize: 10, BlockHashes: hashes},
			wantChanged:   []int64{1},
			wantUnchanged: []int64{0, 2},
		},
		{
			name:        "different block size",
			params:      DeltaUploadParameters{BlockSize: 20, BlockHashes: hashes},
			wantChanged: []int64{0, 1, 2},
		},
		{
			name:        "no previous hashes",
			params:      DeltaUploadParameters{BlockSize: 10},
			wantChanged: []int64{0, 1, 2},
		},
		{
			name:          "previous version was shorter",
			params:        DeltaUploadParameters{BlockSize: 10, BlockHashes: hashes[:1]},
			wantChanged:   []int64{1, 2},
			wantUnchanged: []int64{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, unchanged, err := HashDeltaSelector{}.Select(context.Background(), reader, 10, tt.params, plan)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, ids(changed))
			assert.Equal(t, tt.wantUnchanged, ids(unchanged))
		})
	}
}

func ids(blocks []Block) []int64 {
	var out []int64
	for _, b := range blocks {
		out = append(out, b.ID)
	}
	return out
}
