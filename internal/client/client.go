// Package client uploads queued snapshots to a remote destination.
package client

import (
	"context"
	"errors"

	"github.com/afroash/weatherstation/internal/models"
)

// ErrNotConnected is returned when a publisher cannot reach its destination.
var ErrNotConnected = errors.New("not connected")

// Publisher delivers a batch of snapshots. A nil error means every snapshot
// in the batch was accepted by the destination.
type Publisher interface {
	Publish(ctx context.Context, msgs []models.SnapshotMessage) error
	Name() string
}

// Queue holds snapshots until they are uploaded. storage.SQLiteStore and
// MemoryQueue implement it.
type Queue interface {
	Enqueue(msg models.SnapshotMessage) error
	Pending(limit int) ([]models.QueuedSnapshot, error)
	Ack(ids []int64) error
	Len() (int, error)
}
