package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// testLogger creates a logger for tests
func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "weatherstation-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

// createTestMessage creates a snapshot message taken at the given time
func createTestMessage(stationID string, temp float64, takenAt time.Time) models.SnapshotMessage {
	info := models.NewStationInfo(stationID, "garden", "UTC", "test")
	snap := models.NewSnapshot(takenAt, []models.Metric{
		{Name: models.MetricTemperature, Value: temp},
		{Name: models.MetricPollenIndex, Value: 2},
	})
	return models.NewSnapshotMessage(info, snap)
}

func TestNewSQLiteStore(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if store.db == nil {
		t.Fatal("Expected non-nil database connection")
	}
}

func TestNewSQLiteStore_InvalidPath(t *testing.T) {
	_, err := NewSQLiteStore("/nonexistent/path/that/cannot/exist/test.db", testLogger())
	if err == nil {
		t.Fatal("Expected error for invalid path")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if err := store.Migrate(); err != nil {
		t.Fatalf("Second migration failed: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("Third migration failed: %v", err)
	}
}

func TestSQLiteStore_SingleRow(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	for _, date := range []string{yesterday, today, today} {
		if err := store.Save(sampleRecord(date)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	var rows int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM daily_record").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("daily_record rows = %d, want 1", rows)
	}
}

func TestSQLiteStore_CorruptBodyResets(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.db.Exec(`INSERT INTO daily_record (id, date, body, updated_at) VALUES (1, ?, ?, ?)`,
		today, `{"date":"2024-06-02","rain_ticks":`, "2024-06-02 10:00:00")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	record, err := store.Load(today)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertDefaults(t, record, today)
}

func TestUploadCache_EnqueuePendingAck(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	base := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := store.Enqueue(createTestMessage("station-01", 20+float64(i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	n, err := store.Len()
	if err != nil || n != 5 {
		t.Fatalf("Len = %d, %v; want 5", n, err)
	}

	pending, err := store.Pending(3)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("len(pending) = %d, want 3", len(pending))
	}
	if v, _ := pending[0].Message.Readings.Get(models.MetricTemperature); v != 20 {
		t.Errorf("oldest temperature = %v, want 20", v)
	}
	if !pending[0].Message.Readings.TakenAt().Equal(base) {
		t.Errorf("TakenAt = %v, want %v", pending[0].Message.Readings.TakenAt(), base)
	}

	ids := []int64{pending[0].ID, pending[1].ID, pending[2].ID}
	if err := store.Ack(ids); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	rest, err := store.Pending(10)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("len(rest) = %d, want 2", len(rest))
	}
	if v, _ := rest[0].Message.Readings.Get(models.MetricTemperature); v != 23 {
		t.Errorf("next temperature = %v, want 23", v)
	}
}

func TestUploadCache_AckEmpty(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if err := store.Ack(nil); err != nil {
		t.Errorf("Ack(nil) failed: %v", err)
	}
}

func TestUploadCache_UnreadableEntryDropped(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.db.Exec(`INSERT INTO upload_cache (station_id, taken_at, payload) VALUES ('s', '2024-06-02 10:00:00', '{broken')`)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.Enqueue(createTestMessage("station-01", 21, time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := store.Pending(10)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}

	n, _ := store.Len()
	if n != 1 {
		t.Errorf("Len = %d, want 1 after dropping the unreadable entry", n)
	}
}

func TestUploadCache_DeleteOlderThan(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	store.Enqueue(createTestMessage("station-01", 10, now.AddDate(0, 0, -10)))
	store.Enqueue(createTestMessage("station-01", 11, now.AddDate(0, 0, -8)))
	store.Enqueue(createTestMessage("station-01", 12, now.Add(-time.Hour)))

	deleted, err := store.DeleteOlderThan(now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if n, _ := store.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestGetStorageStats(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	stats, err := store.GetStorageStats()
	if err != nil {
		t.Fatalf("GetStorageStats failed: %v", err)
	}
	if stats.PendingUploads != 0 || stats.RecordDate != "" {
		t.Errorf("empty stats = %+v", stats)
	}

	if err := store.Save(sampleRecord(today)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	taken := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	store.Enqueue(createTestMessage("station-01", 10, taken))
	store.Enqueue(createTestMessage("station-01", 11, taken.Add(time.Hour)))

	stats, err = store.GetStorageStats()
	if err != nil {
		t.Fatalf("GetStorageStats failed: %v", err)
	}
	if stats.RecordDate != today {
		t.Errorf("RecordDate = %q, want %q", stats.RecordDate, today)
	}
	if stats.PendingUploads != 2 {
		t.Errorf("PendingUploads = %d, want 2", stats.PendingUploads)
	}
	if !stats.OldestPending.Equal(taken) {
		t.Errorf("OldestPending = %v, want %v", stats.OldestPending, taken)
	}
	if stats.RecordUpdated.IsZero() {
		t.Error("RecordUpdated should be set")
	}
	if stats.DatabaseSizeMB <= 0 {
		t.Error("DatabaseSizeMB should be positive")
	}
}

func TestClose(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if err := store.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
