package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// SQLiteStore keeps the daily record as a single row and owns the queue of
// snapshots waiting to be uploaded.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// StorageStats contains information about the database
type StorageStats struct {
	RecordDate     string    `json:"record_date,omitempty"`
	RecordUpdated  time.Time `json:"record_updated,omitempty"`
	PendingUploads int64     `json:"pending_uploads"`
	OldestPending  time.Time `json:"oldest_pending,omitempty"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}

const timestampLayout = "2006-01-02 15:04:05"

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// FULL sync: a committed record must survive power loss
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_record (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		date TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS upload_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id TEXT NOT NULL,
		taken_at DATETIME NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_upload_cache_taken ON upload_cache(taken_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// Load returns today's record, resetting it when absent, corrupt or stale.
func (s *SQLiteStore) Load(today string) (*models.DailyRecord, error) {
	return loadOrReset(s, today, s.logger)
}

// Save replaces the stored record in a single transaction.
func (s *SQLiteStore) Save(record *models.DailyRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO daily_record (id, date, body, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, record.Date, string(data), time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to save daily record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) readRaw() ([]byte, error) {
	var body string
	err := s.db.QueryRow("SELECT body FROM daily_record WHERE id = 1").Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query daily record: %w", err)
	}
	return []byte(body), nil
}

// Enqueue adds a snapshot to the upload cache.
func (s *SQLiteStore) Enqueue(msg models.SnapshotMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO upload_cache (station_id, taken_at, payload)
		VALUES (?, ?, ?)
	`, msg.StationID, msg.Timestamp.UTC().Format(timestampLayout), string(payload))
	if err != nil {
		return fmt.Errorf("failed to enqueue snapshot: %w", err)
	}
	return nil
}

// Pending returns up to limit queued snapshots, oldest first.
func (s *SQLiteStore) Pending(limit int) ([]models.QueuedSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, payload
		FROM upload_cache
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload cache: %w", err)
	}
	defer rows.Close()

	var queued []models.QueuedSnapshot
	var unreadable []int64
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan cached snapshot: %w", err)
		}

		var msg models.SnapshotMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			s.logger.Warn().Err(err).Int64("id", id).Msg("Dropping unreadable cached snapshot")
			unreadable = append(unreadable, id)
			continue
		}
		msg.Readings = msg.Readings.WithTakenAt(msg.Timestamp)
		queued = append(queued, models.QueuedSnapshot{ID: id, Message: msg})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	rows.Close()

	// Unreadable entries would otherwise block the head of the queue forever
	if err := s.Ack(unreadable); err != nil {
		s.logger.Error().Err(err).Msg("Failed to drop unreadable cached snapshots")
	}

	return queued, nil
}

// Ack removes uploaded snapshots from the cache.
func (s *SQLiteStore) Ack(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM upload_cache WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("failed to delete cached snapshot %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("count", len(ids)).Msg("Acknowledged cached snapshots")
	return nil
}

// Len returns the number of queued snapshots.
func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM upload_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count upload cache: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes queued snapshots taken before cutoff.
func (s *SQLiteStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		"DELETE FROM upload_cache WHERE taken_at < ?",
		cutoff.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		s.logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Deleted stale cached snapshots")
	}

	return deleted, nil
}

// GetStorageStats returns statistics about the database
func (s *SQLiteStore) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	var updated string
	err := s.db.QueryRow("SELECT date, updated_at FROM daily_record WHERE id = 1").
		Scan(&stats.RecordDate, &updated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query daily record: %w", err)
	}
	if updated != "" {
		stats.RecordUpdated, _ = parseTimestamp(updated)
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM upload_cache").Scan(&stats.PendingUploads); err != nil {
		return nil, fmt.Errorf("failed to count upload cache: %w", err)
	}

	if stats.PendingUploads > 0 {
		var oldest string
		if err := s.db.QueryRow("SELECT MIN(taken_at) FROM upload_cache").Scan(&oldest); err != nil {
			return nil, fmt.Errorf("failed to get oldest snapshot: %w", err)
		}
		stats.OldestPending, _ = parseTimestamp(oldest)
	}

	var pageCount, pageSize int64
	s.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		timestampLayout,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05.000",
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
