package chunkuploader

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"golang.org/x/sync/errgroup"
)

// Uploader runs upload sessions against the upload service, one at a time.
type Uploader struct {
	config  Config
	service Service
	logger  log.Logger
	stats   *Stats

	progressMu sync.Mutex
	progress   Progress
}

// New creates an Uploader for the session served by service.
func New(service Service, config Config, logger log.Logger) *Uploader {
	return &Uploader{
		config:  config.withDefaults(),
		service: service,
		logger:  logger,
		stats:   NewStats(),
	}
}

// Stats returns the statistics of the current or last session.
func (u *Uploader) Stats() *Stats {
	u.progressMu.Lock()
	defer u.progressMu.Unlock()
	return u.stats
}

// UploadFile uploads the file at path.
func (u *Uploader) UploadFile(ctx context.Context, path string) (*Result, error) {
	file, size, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			u.logger.Warnf("Failed to close %s: %s", path, err)
		}
	}()

	return u.Upload(ctx, filepath.Base(path), file, size)
}

// Upload uploads size bytes of source. It keeps asking the service for the
// blocks it still misses until the service reports the upload as completed.
func (u *Uploader) Upload(ctx context.Context, name string, source io.ReaderAt, size int64) (*Result, error) {
	start := time.Now()

	plan, err := Plan(size, u.config.BlockSize)
	if err != nil {
		return nil, err
	}
	reader := NewBlockReader(source, size, u.config.BufferPool)
	stats := NewStats()
	u.progressMu.Lock()
	u.stats = stats
	u.progressMu.Unlock()
	u.resetProgress(len(plan), size)

	u.logger.Infof("Uploading %s (%s) in %d blocks of %s, %d in parallel",
		name, units.HumanSizeWithPrecision(float64(size), 3), len(plan),
		units.BytesSize(float64(u.config.BlockSize)), u.config.MaxParallelism)

	progress, err := u.service.Initialize(ctx, InitializeRequest{
		FileName:  name,
		FileSize:  size,
		BlockSize: u.config.BlockSize,
		Delta:     u.config.Delta,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize upload: %w", err)
	}

	result := &Result{}
	directDone := false
	for {
		if progress.Status == StatusFailed {
			msg := progress.ErrorMessage
			if msg == "" {
				msg = "no details"
			}
			return nil, errkind.Newf(errkind.ProcessingFailed, "upload "+name, "upload service reported failure: %s", msg)
		}
		if progress.Done() {
			break
		}

		result.Passes++
		pass := PassStats{Pending: len(progress.PendingBlocks)}
		passStart := time.Now()
		blocksBefore, bytesBefore := stats.Blocks(), stats.Bytes()
		transferred := false
		var unchanged []int64

		switch {
		case progress.DirectUploadParameters != nil && !directDone:
			if err := u.uploadDirect(ctx, stats, reader, *progress.DirectUploadParameters); err != nil {
				return nil, err
			}
			directDone = true
			result.Direct = true
			pass.Direct = true
			transferred = true
		case len(progress.PendingBlocks) > 0:
			pending, err := resolvePending(progress.PendingBlocks, plan)
			if err != nil {
				return nil, err
			}

			changed := pending
			if progress.DeltaUploadParameters != nil {
				var skipped []Block
				changed, skipped, err = u.config.DeltaSelector.Select(ctx, reader, u.config.BlockSize, *progress.DeltaUploadParameters, pending)
				if err != nil {
					return nil, fmt.Errorf("select changed blocks: %w", err)
				}
				for _, block := range skipped {
					unchanged = append(unchanged, block.ID)
				}
				result.UnchangedBlocks += len(skipped)
				u.logger.Infof("Delta upload: %d of %d pending blocks changed", len(changed), len(pending))
			}

			u.logger.Debugf("Pass %d: uploading %d pending blocks", result.Passes, len(changed))
			if err := u.runBlocks(ctx, stats, reader, changed, u.service.UploadBlock); err != nil {
				return nil, err
			}
			transferred = len(changed) > 0 || len(unchanged) > 0
		}

		pass.Uploaded = int(stats.Blocks() - blocksBefore)
		pass.Unchanged = len(unchanged)
		pass.Bytes = stats.Bytes() - bytesBefore
		pass.Duration = time.Since(passStart)
		stats.passDone(pass)
		if transferred {
			u.logger.Printf("Pass %d: %d blocks (%s) in %s, %d unchanged",
				result.Passes, pass.Uploaded, units.HumanSizeWithPrecision(float64(pass.Bytes), 3),
				pass.Duration.Round(time.Millisecond), pass.Unchanged)
		}

		delay := progress.RequestDelay
		if delay <= 0 && !transferred {
			delay = u.config.IdlePollInterval
		}
		if err := wait(ctx, delay); err != nil {
			return nil, fmt.Errorf("upload cancelled: %w", err)
		}

		progress, err = u.service.Continue(ctx, ContinueRequest{UnchangedBlockIDs: unchanged})
		if err != nil {
			return nil, fmt.Errorf("query upload progress: %w", err)
		}
	}

	result.BlocksUploaded = int(stats.Blocks())
	result.BytesUploaded = stats.Bytes()
	result.Duration = time.Since(start)

	u.logger.Donef("Uploaded %s: %s in %d blocks (%d unchanged) in %s at %s/s, slowest block %s",
		name, units.HumanSizeWithPrecision(float64(result.BytesUploaded), 3),
		result.BlocksUploaded, result.UnchangedBlocks, result.Duration.Round(time.Second),
		units.HumanSizeWithPrecision(stats.Throughput(), 3), stats.Slowest().Round(time.Millisecond))

	return result, nil
}

type sendFunc func(ctx context.Context, block Block, data []byte) error

// runBlocks sends blocks with at most MaxParallelism in flight. The first
// failure cancels the blocks still in flight and is returned.
func (u *Uploader) runBlocks(ctx context.Context, stats *Stats, reader *BlockReader, blocks []Block, send sendFunc) error {
	if len(blocks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.config.MaxParallelism)
	for _, block := range blocks {
		if gctx.Err() != nil {
			break
		}
		block := block
		g.Go(func() error {
			return u.sendBlock(gctx, stats, reader, block, send)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		}
		return err
	}
	return ctx.Err()
}

func (u *Uploader) sendBlock(ctx context.Context, stats *Stats, reader *BlockReader, block Block, send sendFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, release, err := reader.Read(block)
	defer release()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := send(ctx, block, data); err != nil {
		return fmt.Errorf("upload block %d: %w", block.ID, err)
	}
	took := time.Since(start)
	stats.blockDone(took, block.Size)

	p := u.reportProgress(block.Size)
	u.logger.Debugf("Block %d uploaded in %s [%d/%d] [avg=%s]",
		block.ID, took.Round(time.Millisecond), p.BlocksUploaded, p.TotalBlocks, stats.Average().Round(time.Millisecond))
	return nil
}

// uploadDirect writes the requested ranges straight to the SAS URI and
// commits them as one blob.
func (u *Uploader) uploadDirect(ctx context.Context, stats *Stats, reader *BlockReader, params DirectUploadParameters) error {
	blocks, err := splitRanges(params.Ranges, reader.Size(), u.config.BlockSize)
	if err != nil {
		return err
	}

	var total int64
	ids := make([]string, len(blocks))
	for i, block := range blocks {
		ids[i] = directBlockID(block.ID)
		total += block.Size
	}
	u.resetProgress(len(blocks), total)
	u.logger.Infof("Direct upload of %s in %d blocks", units.HumanSizeWithPrecision(float64(total), 3), len(blocks))

	stage := func(ctx context.Context, block Block, data []byte) error {
		return u.service.StageDirectBlock(ctx, params.SasURI, ids[block.ID], data)
	}
	if err := u.runBlocks(ctx, stats, reader, blocks, stage); err != nil {
		return err
	}

	if err := u.service.CommitDirectBlocks(ctx, params.SasURI, ids); err != nil {
		return fmt.Errorf("commit direct upload: %w", err)
	}
	return nil
}

// directBlockID returns a base64 block id; all ids of one blob have the same length.
func directBlockID(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%010d", id)))
}

func (u *Uploader) resetProgress(totalBlocks int, totalBytes int64) {
	u.progressMu.Lock()
	defer u.progressMu.Unlock()
	u.progress = Progress{TotalBlocks: totalBlocks, TotalBytes: totalBytes}
}

func (u *Uploader) reportProgress(size int64) Progress {
	u.progressMu.Lock()
	defer u.progressMu.Unlock()
	u.progress.BlocksUploaded++
	u.progress.BytesUploaded += size
	if u.config.Progress != nil {
		u.config.Progress(u.progress)
	}
	return u.progress
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
