package chunkuploader

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
)

// DeltaSelector splits pending blocks into those that must be sent and those
// the service already holds from the previous version of the file.
type DeltaSelector interface {
	Select(ctx context.Context, reader *BlockReader, blockSize int64, params DeltaUploadParameters, pending []Block) (changed, unchanged []Block, err error)
}

// HashDeltaSelector compares the SHA-256 of each local block with the hash
// the service reports for the same block of the previous version. When the
// previous version used a different block size every block counts as changed.
type HashDeltaSelector struct{}

// Select implements DeltaSelector.
func (HashDeltaSelector) Select(ctx context.Context, reader *BlockReader, blockSize int64, params DeltaUploadParameters, pending []Block) ([]Block, []Block, error) {
	if len(params.BlockHashes) == 0 || params.BlockSize != blockSize {
		return pending, nil, nil
	}

	var changed, unchanged []Block
	for _, block := range pending {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if block.ID >= int64(len(params.BlockHashes)) || params.BlockHashes[block.ID] == "" {
			changed = append(changed, block)
			continue
		}

		hash, err := blockHash(reader, block)
		if err != nil {
			return nil, nil, err
		}
		if hash == params.BlockHashes[block.ID] {
			unchanged = append(unchanged, block)
		} else {
			changed = append(changed, block)
		}
	}
	return changed, unchanged, nil
}

func blockHash(reader *BlockReader, block Block) (string, error) {
	data, release, err := reader.Read(block)
	defer release()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// BlockHashes returns the base64 SHA-256 of every block of the plan, in the
// format HashDeltaSelector compares against.
func BlockHashes(ctx context.Context, reader *BlockReader, plan []Block) ([]string, error) {
	hashes := make([]string, len(plan))
	for i, block := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hash, err := blockHash(reader, block)
		if err != nil {
			return nil, err
		}
		hashes[i] = hash
	}
	return hashes, nil
}
