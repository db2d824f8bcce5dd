// Package chunkuploader transfers one file to the upload service in
// fixed-size blocks with bounded parallelism. It resumes from whatever the
// service reports as still pending, so an interrupted upload continues
// where the service left off.
package chunkuploader

import (
	"context"
	"time"
)

// Status is the upload service's view of an upload session.
type Status string

const (
	StatusUploading         Status = "Uploading"
	StatusBusy              Status = "Busy"
	StatusReceivedAllBlocks Status = "ReceivedAllBlocks"
	StatusCompleted         Status = "Completed"
	StatusFailed            Status = "Failed"
)

// Block is a contiguous byte range of the source file.
type Block struct {
	ID     int64
	Offset int64
	Size   int64
}

// ByteRange is a span of the source file named by the service for a direct transfer.
type ByteRange struct {
	Offset int64
	Length int64
}

// DirectUploadParameters switch a session to a single-destination transfer.
// An empty Ranges means the whole file.
type DirectUploadParameters struct {
	SasURI string
	Ranges []ByteRange
}

// DeltaUploadParameters describe the previously uploaded version of the file.
// BlockHashes holds the base64 SHA-256 of each block, indexed by block id.
type DeltaUploadParameters struct {
	BlockSize   int64
	BlockHashes []string
}

// UploadProgress is the service's report of what remains to be uploaded.
// Only the block ids of PendingBlocks are authoritative; ranges come from the
// local block plan.
type UploadProgress struct {
	Status                 Status
	PendingBlocks          []Block
	RequestDelay           time.Duration
	DirectUploadParameters *DirectUploadParameters
	DeltaUploadParameters  *DeltaUploadParameters
	ErrorMessage           string
}

// Done reports whether the service has received and assembled the whole file.
func (p *UploadProgress) Done() bool {
	return p.Status == StatusCompleted && len(p.PendingBlocks) == 0
}

// InitializeRequest opens or resumes an upload session.
type InitializeRequest struct {
	FileName  string
	FileSize  int64
	BlockSize int64
	Delta     bool
}

// ContinueRequest asks the service for the current progress. UnchangedBlockIDs
// lists pending blocks the client will not send because the service already
// holds identical content.
type ContinueRequest struct {
	UnchangedBlockIDs []int64
}

// Service is the upload service of one upload session.
type Service interface {
	Initialize(ctx context.Context, req InitializeRequest) (*UploadProgress, error)
	Continue(ctx context.Context, req ContinueRequest) (*UploadProgress, error)
	UploadBlock(ctx context.Context, block Block, data []byte) error

	// StageDirectBlock and CommitDirectBlocks write to the SAS URI of a direct transfer.
	StageDirectBlock(ctx context.Context, sasURI, blockID string, data []byte) error
	CommitDirectBlocks(ctx context.Context, sasURI string, blockIDs []string) error
}

// Progress is reported after every uploaded block.
type Progress struct {
	BlocksUploaded int
	TotalBlocks    int
	BytesUploaded  int64
	TotalBytes     int64
}

// Result summarizes a finished upload.
type Result struct {
	BlocksUploaded  int
	BytesUploaded   int64
	UnchangedBlocks int
	Direct          bool
	Passes          int
	Duration        time.Duration
}
