package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/afroash/weatherstation/internal/models"
)

// testMessage creates a snapshot message carrying temp as its temperature.
func testMessage(temp float64) models.SnapshotMessage {
	info := models.NewStationInfo("station-01", "garden", "UTC", "test")
	snap := models.NewSnapshot(time.Now(), []models.Metric{
		{Name: models.MetricTemperature, Value: temp},
	})
	return models.NewSnapshotMessage(info, snap)
}

func temperatureOf(t *testing.T, q models.QueuedSnapshot) float64 {
	t.Helper()
	v, ok := q.Message.Readings.Get(models.MetricTemperature)
	if !ok {
		t.Fatal("queued snapshot has no temperature")
	}
	return v
}

func queueLen(t *testing.T, q Queue) int {
	t.Helper()
	n, err := q.Len()
	if err != nil {
		t.Fatalf("Len() failed: %v", err)
	}
	return n
}

func TestNewMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(100, true)

	if q.Capacity() != 100 {
		t.Errorf("Capacity = %d, want 100", q.Capacity())
	}
	if queueLen(t, q) != 0 {
		t.Errorf("Initial len = %d, want 0", queueLen(t, q))
	}
	if NewMemoryQueue(0, true).Capacity() != 1 {
		t.Error("zero capacity should be raised to 1")
	}
}

func TestMemoryQueue_PendingDoesNotRemove(t *testing.T) {
	q := NewMemoryQueue(10, true)
	for i := 0; i < 5; i++ {
		q.Enqueue(testMessage(float64(20 + i)))
	}

	pending, err := q.Pending(3)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Pending(3) returned %d, want 3", len(pending))
	}
	if temperatureOf(t, pending[0]) != 20 {
		t.Errorf("first pending = %v, want 20", temperatureOf(t, pending[0]))
	}
	if queueLen(t, q) != 5 {
		t.Errorf("len = %d, want 5", queueLen(t, q))
	}

	more, _ := q.Pending(50)
	if len(more) != 5 {
		t.Errorf("Pending(50) returned %d, want 5", len(more))
	}
}

func TestMemoryQueue_Ack(t *testing.T) {
	q := NewMemoryQueue(10, true)
	for i := 0; i < 5; i++ {
		q.Enqueue(testMessage(float64(i)))
	}

	pending, _ := q.Pending(2)
	if err := q.Ack([]int64{pending[0].ID, pending[1].ID, 999}); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	rest, _ := q.Pending(10)
	if len(rest) != 3 {
		t.Fatalf("len(rest) = %d, want 3", len(rest))
	}
	for i, r := range rest {
		if temperatureOf(t, r) != float64(i+2) {
			t.Errorf("rest[%d] = %v, want %v (FIFO order broken)", i, temperatureOf(t, r), float64(i+2))
		}
	}
}

func TestMemoryQueue_DropOldest(t *testing.T) {
	q := NewMemoryQueue(3, true)
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(testMessage(float64(i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	pending, _ := q.Pending(10)
	if len(pending) != 3 {
		t.Fatalf("len = %d, want 3", len(pending))
	}
	if temperatureOf(t, pending[0]) != 2 || temperatureOf(t, pending[2]) != 4 {
		t.Errorf("kept %v..%v, want 2..4", temperatureOf(t, pending[0]), temperatureOf(t, pending[2]))
	}
	if q.Stats().TotalDropped != 2 {
		t.Errorf("TotalDropped = %d, want 2", q.Stats().TotalDropped)
	}
}

func TestMemoryQueue_DropNewest(t *testing.T) {
	q := NewMemoryQueue(2, false)
	q.Enqueue(testMessage(1))
	q.Enqueue(testMessage(2))

	if err := q.Enqueue(testMessage(3)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}

	pending, _ := q.Pending(10)
	if temperatureOf(t, pending[1]) != 2 {
		t.Errorf("newest kept = %v, want 2", temperatureOf(t, pending[1]))
	}
}

func TestMemoryQueue_IDsAreUnique(t *testing.T) {
	q := NewMemoryQueue(2, true)
	seen := map[int64]bool{}
	for i := 0; i < 6; i++ {
		q.Enqueue(testMessage(float64(i)))
		pending, _ := q.Pending(2)
		last := pending[len(pending)-1]
		if seen[last.ID] {
			t.Fatalf("ID %d reused", last.ID)
		}
		seen[last.ID] = true
	}
}

func TestMemoryQueue_Stats(t *testing.T) {
	q := NewMemoryQueue(10, true)
	for i := 0; i < 4; i++ {
		q.Enqueue(testMessage(float64(i)))
	}
	pending, _ := q.Pending(4)
	q.Ack([]int64{pending[0].ID})

	stats := q.Stats()
	if stats.TotalPushed != 4 {
		t.Errorf("TotalPushed = %d, want 4", stats.TotalPushed)
	}
	if stats.HighWaterMark != 4 {
		t.Errorf("HighWaterMark = %d, want 4", stats.HighWaterMark)
	}
	if stats.LastPushTime.IsZero() {
		t.Error("LastPushTime should be set")
	}
	if q.String() != "Queue[3/10, dropped: 0, mode: drop-oldest]" {
		t.Errorf("String() = %q", q.String())
	}
}

func TestMemoryQueue_ThreadSafety(t *testing.T) {
	q := NewMemoryQueue(1000, true)

	var wg sync.WaitGroup

	// Concurrent producers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(testMessage(float64(id*100 + j)))
			}
		}(i)
	}

	// Concurrent consumers
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				pending, _ := q.Pending(10)
				ids := make([]int64, len(pending))
				for k, p := range pending {
					ids[k] = p.ID
				}
				q.Ack(ids)
				time.Sleep(time.Millisecond)
			}
		}()
	}

	wg.Wait()
	t.Logf("Final queue state: %s", q.String())
}

func BenchmarkMemoryQueue_Enqueue(b *testing.B) {
	q := NewMemoryQueue(10000, true)
	msg := testMessage(22.5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(msg)
	}
}
