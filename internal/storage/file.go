package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// FileStore keeps the daily record in a JSON file. Saves go to a temporary
// file in the same directory which is synced and renamed over the target, so
// a reader sees either the old or the new record, never a partial one.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a file-backed record store, creating the parent
// directory if needed.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("record path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the record file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns today's record, resetting it when absent, corrupt or stale.
func (s *FileStore) Load(today string) (*models.DailyRecord, error) {
	return loadOrReset(s, today, s.logger)
}

// Save atomically replaces the record file.
func (s *FileStore) Save(record *models.DailyRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save daily record: %w", err)
	}
	s.logger.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("Daily record saved")
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readRaw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRecord
	}
	return data, err
}

// writeFileAtomic writes data to a temporary sibling of path and renames it
// into place after syncing.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Some filesystems refuse
// to sync directories; the rename itself has already happened by then.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
