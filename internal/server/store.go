package server

import (
	"sync"
	"time"

	"github.com/afroash/weatherstation/internal/models"
)

// SnapshotStore is an in-memory ring buffer of recent snapshots
type SnapshotStore struct {
	capacity int
	data     []models.SnapshotMessage
	mutex    sync.RWMutex
	total    int64
}

// NewSnapshotStore creates a new in-memory store
func NewSnapshotStore(capacity int) *SnapshotStore {
	if capacity <= 0 {
		capacity = 96
	}
	return &SnapshotStore{
		capacity: capacity,
		data:     make([]models.SnapshotMessage, 0, capacity),
	}
}

// Add adds a snapshot to the store, evicting the oldest when full
func (ss *SnapshotStore) Add(msg models.SnapshotMessage) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if len(ss.data) >= ss.capacity {
		copy(ss.data, ss.data[1:])
		ss.data = ss.data[:len(ss.data)-1]
	}
	ss.data = append(ss.data, msg)
	ss.total++
}

// Latest returns the n most recent snapshots, newest first
func (ss *SnapshotStore) Latest(n int) []models.SnapshotMessage {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	if n <= 0 || len(ss.data) == 0 {
		return []models.SnapshotMessage{}
	}

	start := len(ss.data) - n
	if start < 0 {
		start = 0
	}

	result := make([]models.SnapshotMessage, 0, len(ss.data)-start)
	for i := len(ss.data) - 1; i >= start; i-- {
		result = append(result, ss.data[i])
	}
	return result
}

// Current returns the most recent snapshot
func (ss *SnapshotStore) Current() (models.SnapshotMessage, bool) {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	if len(ss.data) == 0 {
		return models.SnapshotMessage{}, false
	}
	return ss.data[len(ss.data)-1], true
}

// StoreStats contains statistics about the snapshot store
type StoreStats struct {
	TotalSnapshots   int64     `json:"total_snapshots"`
	CurrentSnapshots int       `json:"current_snapshots"`
	Capacity         int       `json:"capacity"`
	OldestSnapshot   time.Time `json:"oldest_snapshot,omitempty"`
	NewestSnapshot   time.Time `json:"newest_snapshot,omitempty"`
}

// Stats returns statistics about the store
func (ss *SnapshotStore) Stats() StoreStats {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	stats := StoreStats{
		TotalSnapshots:   ss.total,
		CurrentSnapshots: len(ss.data),
		Capacity:         ss.capacity,
	}
	if len(ss.data) > 0 {
		stats.OldestSnapshot = ss.data[0].Timestamp
		stats.NewestSnapshot = ss.data[len(ss.data)-1].Timestamp
	}
	return stats
}

// Clear removes all data from the store
func (ss *SnapshotStore) Clear() {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	ss.data = ss.data[:0]
	ss.total = 0
}
