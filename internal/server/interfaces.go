package server

import (
	"github.com/afroash/weatherstation/internal/models"
)

// SnapshotSource defines the recent-snapshot view served by the API
// SnapshotStore implements this interface
type SnapshotSource interface {
	// Latest returns the n most recent snapshots (newest first)
	Latest(n int) []models.SnapshotMessage

	// Current returns the most recent snapshot
	Current() (models.SnapshotMessage, bool)

	// Stats returns statistics about the store
	Stats() StoreStats
}

// DailySource provides today's persisted statistics
// weather.Station implements this interface
type DailySource interface {
	Daily() (*models.DailyRecord, error)
}

// StatsFunc reports the stats of one component for /api/stats
type StatsFunc func() (any, error)

// Compile-time interface check
var _ SnapshotSource = (*SnapshotStore)(nil)
