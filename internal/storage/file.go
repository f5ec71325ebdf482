package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore persists per-symbol volume histories as a single JSON document:
// a mapping from symbol to an ordered list of {timestamp, volume} records.
// The format is backward compatible with previously written data files.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore constructs a store writing to the given path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "file_store").Logger(),
	}
}

// Path returns the data file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the persisted histories. A missing file is not an error; it
// yields an empty map and first-run behaviour upstream. An undecodable file
// degrades the same way: the scanner starts fresh rather than refusing to
// run, and the next save replaces the bad document.
func (f *FileStore) Load(ctx context.Context) (map[string][]VolumeRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]VolumeRecord{}, nil
		}
		return nil, fmt.Errorf("read data file: %w", err)
	}

	histories := make(map[string][]VolumeRecord)
	if err := json.Unmarshal(data, &histories); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("data file undecodable; starting with empty history")
		return map[string][]VolumeRecord{}, nil
	}
	return histories, nil
}

// Save writes the histories atomically: a temp file in the same directory is
// renamed over the target so a crashed write never corrupts prior data.
func (f *FileStore) Save(ctx context.Context, histories map[string][]VolumeRecord) error {
	data, err := json.MarshalIndent(histories, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// Reset truncates the store to an empty document.
func (f *FileStore) Reset(ctx context.Context) error {
	return f.Save(ctx, map[string][]VolumeRecord{})
}
