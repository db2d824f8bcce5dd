package xfus

import (
	"encoding/xml"
	"time"

	"github.com/microsoft/PackageUploader-sub002/chunkuploader"
)

// UploadCredential authorizes writing the bytes of one package. It is only
// valid for a single upload session.
type UploadCredential struct {
	Token        string
	UploadDomain string
	Tenant       string
	TargetID     string
}

type initializeRequest struct {
	FileName  string `json:"fileName,omitempty"`
	FileSize  int64  `json:"fileSize"`
	BlockSize int64  `json:"blockSize"`
	Delta     bool   `json:"deltaUpload"`
}

type continueRequest struct {
	UnchangedBlockIDs []int64 `json:"unchangedBlockIds,omitempty"`
}

type block struct {
	ID     int64 `json:"id"`
	Offset int64 `json:"offset,omitempty"`
	Size   int64 `json:"size,omitempty"`
}

type byteRange struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

type directUploadParameters struct {
	SasURI string      `json:"sasUri"`
	Ranges []byteRange `json:"ranges,omitempty"`
}

type deltaUploadParameters struct {
	BlockSize   int64    `json:"blockSize"`
	BlockHashes []string `json:"blockHashes"`
}

type uploadProgress struct {
	Status                 string                  `json:"status"`
	PendingBlocks          []block                 `json:"pendingBlocks"`
	RequestDelayMs         int64                   `json:"requestDelay"`
	DirectUploadParameters *directUploadParameters `json:"directUploadParameters,omitempty"`
	DeltaUploadParameters  *deltaUploadParameters  `json:"deltaUploadParameters,omitempty"`
	ErrorMessage           string                  `json:"errorMessage,omitempty"`
}

func (p uploadProgress) toDomain() *chunkuploader.UploadProgress {
	progress := &chunkuploader.UploadProgress{
		Status:       chunkuploader.Status(p.Status),
		RequestDelay: time.Duration(p.RequestDelayMs) * time.Millisecond,
		ErrorMessage: p.ErrorMessage,
	}
	for _, b := range p.PendingBlocks {
		progress.PendingBlocks = append(progress.PendingBlocks, chunkuploader.Block{ID: b.ID, Offset: b.Offset, Size: b.Size})
	}
	if d := p.DirectUploadParameters; d != nil && d.SasURI != "" {
		direct := &chunkuploader.DirectUploadParameters{SasURI: d.SasURI}
		for _, r := range d.Ranges {
			direct.Ranges = append(direct.Ranges, chunkuploader.ByteRange{Offset: r.Offset, Length: r.Length})
		}
		progress.DirectUploadParameters = direct
	}
	if d := p.DeltaUploadParameters; d != nil {
		progress.DeltaUploadParameters = &chunkuploader.DeltaUploadParameters{
			BlockSize:   d.BlockSize,
			BlockHashes: d.BlockHashes,
		}
	}
	return progress
}

// blockList is the body of an Azure Blob Put Block List request.
type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}
