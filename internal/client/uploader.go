package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// UploaderConfig holds configuration for the uploader
type UploaderConfig struct {
	// Frequency is the number of queued snapshots that triggers an upload.
	Frequency int
	// BatchSize caps the snapshots sent in one Publish call.
	BatchSize int
}

// UploadStats contains statistics about uploads
type UploadStats struct {
	TotalUploaded int64     `json:"total_uploaded"`
	TotalFailures int64     `json:"total_failures"`
	LastUpload    time.Time `json:"last_upload,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Uploader caches snapshots and uploads them once enough have accumulated.
// Snapshots stay queued until the publisher accepts them.
type Uploader struct {
	queue     Queue
	publisher Publisher
	info      *models.StationInfo
	cfg       UploaderConfig
	logger    zerolog.Logger

	mu    sync.Mutex
	stats UploadStats
}

// NewUploader creates an uploader
func NewUploader(queue Queue, publisher Publisher, info *models.StationInfo, cfg UploaderConfig, logger zerolog.Logger) *Uploader {
	if cfg.Frequency <= 0 {
		cfg.Frequency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Uploader{
		queue:     queue,
		publisher: publisher,
		info:      info,
		cfg:       cfg,
		logger:    logger.With().Str("destination", publisher.Name()).Logger(),
	}
}

// Submit caches a snapshot and uploads the cache when it holds at least
// Frequency snapshots. Upload failures are logged and retried on a later
// call; only a failure to cache is returned.
func (u *Uploader) Submit(ctx context.Context, snap models.Snapshot) error {
	if err := u.queue.Enqueue(models.NewSnapshotMessage(u.info, snap)); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	n, err := u.queue.Len()
	if err != nil {
		return fmt.Errorf("failed to count cached snapshots: %w", err)
	}
	if n < u.cfg.Frequency {
		u.logger.Debug().Int("cached", n).Int("frequency", u.cfg.Frequency).Msg("Snapshot cached")
		return nil
	}

	if _, err := u.Flush(ctx); err != nil {
		u.logger.Warn().Err(err).Int("cached", n).Msg("Upload failed, keeping snapshots cached")
	}
	return nil
}

// Flush uploads every cached snapshot in batches and returns how many were
// delivered. It stops at the first failed batch.
func (u *Uploader) Flush(ctx context.Context) (int, error) {
	sent := 0
	for {
		pending, err := u.queue.Pending(u.cfg.BatchSize)
		if err != nil {
			return sent, fmt.Errorf("failed to read cached snapshots: %w", err)
		}
		if len(pending) == 0 {
			return sent, nil
		}

		msgs := make([]models.SnapshotMessage, len(pending))
		ids := make([]int64, len(pending))
		for i, p := range pending {
			msgs[i] = p.Message
			ids[i] = p.ID
		}

		if err := u.publisher.Publish(ctx, msgs); err != nil {
			u.recordFailure(err)
			return sent, err
		}
		if err := u.queue.Ack(ids); err != nil {
			return sent, fmt.Errorf("failed to remove uploaded snapshots: %w", err)
		}

		sent += len(msgs)
		u.recordSuccess(len(msgs))
	}
}

// Stats returns current upload statistics
func (u *Uploader) Stats() UploadStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

func (u *Uploader) recordSuccess(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stats.TotalUploaded += int64(n)
	u.stats.LastUpload = time.Now()
	u.stats.LastError = ""
}

func (u *Uploader) recordFailure(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stats.TotalFailures++
	u.stats.LastError = err.Error()
}
