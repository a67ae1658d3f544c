package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// ErrNoRecord is returned by backends when no daily record has been stored yet.
var ErrNoRecord = errors.New("no daily record stored")

// RecordStore persists the single DailyRecord of the station.
//
// Load never fails because of a missing, unreadable or stale record: it
// returns a fresh record for today and persists it before returning. It only
// returns an error when that fresh record cannot be written. Save must either
// fully replace the stored record or leave the previous one in place.
type RecordStore interface {
	Load(today string) (*models.DailyRecord, error)
	Save(record *models.DailyRecord) error
	Close() error
}

// Compile-time interface checks
var (
	_ RecordStore = (*FileStore)(nil)
	_ RecordStore = (*SQLiteStore)(nil)
)

// backend is the raw byte-level persistence used by loadOrReset.
type backend interface {
	readRaw() ([]byte, error)
	Save(record *models.DailyRecord) error
}

// loadOrReset implements the shared Load contract on top of a backend.
func loadOrReset(b backend, today string, logger zerolog.Logger) (*models.DailyRecord, error) {
	data, err := b.readRaw()
	switch {
	case errors.Is(err, ErrNoRecord):
		logger.Info().Str("date", today).Msg("No daily record found, starting a new one")
		return resetRecord(b, today)
	case err != nil:
		logger.Error().Err(err).Msg("Failed to read daily record, resetting")
		return resetRecord(b, today)
	}

	record, err := decodeRecord(data)
	if err != nil {
		logger.Error().Err(err).Int("bytes", len(data)).Msg("Daily record is corrupt, resetting")
		return resetRecord(b, today)
	}

	if record.Date != today {
		logger.Info().
			Str("stored_date", record.Date).
			Str("date", today).
			Msg("New day detected, resetting daily stats")
		return resetRecord(b, today)
	}

	return record, nil
}

// resetRecord persists a default record for today.
func resetRecord(b backend, today string) (*models.DailyRecord, error) {
	record := models.NewDailyRecord(today)
	if err := b.Save(record); err != nil {
		return nil, fmt.Errorf("failed to persist reset record: %w", err)
	}
	return record, nil
}

// decodeRecord decodes a stored record over a default one, so keys missing
// from older files keep their defaults.
func decodeRecord(data []byte) (*models.DailyRecord, error) {
	record := models.NewDailyRecord("")
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode daily record: %w", err)
	}
	if record.Date == "" {
		return nil, errors.New("daily record has no date")
	}
	record.Normalize()
	return record, nil
}

// encodeRecord serialises a record for storage.
func encodeRecord(record *models.DailyRecord) ([]byte, error) {
	if record == nil {
		return nil, errors.New("nil daily record")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode daily record: %w", err)
	}
	return data, nil
}
