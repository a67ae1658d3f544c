package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afroash/weatherstation/internal/models"
)

// MemoryQueue is a thread-safe bounded queue of snapshots for stations
// without an upload cache on disk. Its contents are lost on restart.
type MemoryQueue struct {
	entries    []models.QueuedSnapshot
	capacity   int
	dropOldest bool
	nextID     int64
	mutex      sync.RWMutex
	stats      QueueStats
}

// QueueStats tracks queue usage statistics
type QueueStats struct {
	TotalPushed   int64
	TotalDropped  int64
	HighWaterMark int
	LastPushTime  time.Time
	LastDropTime  time.Time
}

// NewMemoryQueue creates a queue holding at most capacity snapshots.
func NewMemoryQueue(capacity int, dropOldest bool) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{
		entries:    make([]models.QueuedSnapshot, 0, capacity),
		capacity:   capacity,
		dropOldest: dropOldest,
	}
}

// ErrQueueFull is returned by Enqueue in drop-newest mode.
var ErrQueueFull = errors.New("upload queue full")

// Enqueue adds a snapshot. When full, the oldest entry is dropped, or the new
// one is rejected with ErrQueueFull in drop-newest mode.
func (q *MemoryQueue) Enqueue(msg models.SnapshotMessage) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.entries) >= q.capacity {
		q.stats.TotalDropped++
		q.stats.LastDropTime = time.Now()
		if !q.dropOldest {
			return ErrQueueFull
		}
		q.entries = append(q.entries[:0:0], q.entries[1:]...)
	}

	q.nextID++
	q.entries = append(q.entries, models.QueuedSnapshot{ID: q.nextID, Message: msg})
	q.stats.TotalPushed++
	q.stats.LastPushTime = time.Now()

	if len(q.entries) > q.stats.HighWaterMark {
		q.stats.HighWaterMark = len(q.entries)
	}
	return nil
}

// Pending returns up to limit snapshots, oldest first, without removing them.
func (q *MemoryQueue) Pending(limit int) ([]models.QueuedSnapshot, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	count := min(limit, len(q.entries))
	if count <= 0 {
		return nil, nil
	}
	result := make([]models.QueuedSnapshot, count)
	copy(result, q.entries[:count])
	return result, nil
}

// Ack removes the given snapshots. Unknown IDs are ignored.
func (q *MemoryQueue) Ack(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	done := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	kept := q.entries[:0]
	for _, e := range q.entries {
		if _, ok := done[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return nil
}

// Len returns the number of queued snapshots.
func (q *MemoryQueue) Len() (int, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return len(q.entries), nil
}

// Capacity returns the maximum capacity of the queue
func (q *MemoryQueue) Capacity() int {
	return q.capacity
}

// Stats returns a copy of current queue statistics
func (q *MemoryQueue) Stats() QueueStats {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.stats
}

// String returns a human-readable representation of queue state
func (q *MemoryQueue) String() string {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	mode := "drop-newest"
	if q.dropOldest {
		mode = "drop-oldest"
	}

	return fmt.Sprintf("Queue[%d/%d, dropped: %d, mode: %s]",
		len(q.entries),
		q.capacity,
		q.stats.TotalDropped,
		mode,
	)
}
