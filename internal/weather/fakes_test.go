package weather

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/storage"
)

// stepClock returns t and then advances it by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeSignal flips its level every toggleEvery reads. A zero toggleEvery
// keeps the level constant.
type fakeSignal struct {
	calls       int
	toggleEvery int
	err         error
}

func (s *fakeSignal) Value() (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	level := 0
	if s.toggleEvery > 0 {
		level = (s.calls / s.toggleEvery) % 2
	}
	s.calls++
	return level, nil
}

// fixedVoltage is a vane stuck at one voltage.
type fixedVoltage struct {
	v   float64
	err error
}

func (f fixedVoltage) Voltage() (float64, error) {
	return f.v, f.err
}

// failingStore loads fresh records but refuses to save them.
type failingStore struct{}

func (failingStore) Load(today string) (*models.DailyRecord, error) {
	return models.NewDailyRecord(today), nil
}

func (failingStore) Save(*models.DailyRecord) error { return errors.New("medium failure") }

func (failingStore) Close() error { return nil }

var day1 = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir()+"/daily_stats.json", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return store
}

func loadRecord(t *testing.T, store storage.RecordStore, at time.Time) *models.DailyRecord {
	t.Helper()
	record, err := store.Load(models.DayKey(at, time.UTC))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return record
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
