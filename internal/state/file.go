package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	ledgerFile   = "processed_recordings.json"
	runCountFile = "run_count.json"
)

// FileStore keeps the run counter and ledger as two JSON files in a single
// directory, the same on-disk shape earlier versions of this tool used, so
// existing state carries over.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

type runCountRecord struct {
	RunCount int `json:"run_count"`
}

// LoadRunCount returns the persisted run counter, or 0 if none exists yet.
func (s *FileStore) LoadRunCount(ctx context.Context) (int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, runCountFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read run count: %w", err)
	}
	var rec runCountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrStateCorrupt, runCountFile, err)
	}
	return rec.RunCount, nil
}

// SaveRunCount replaces the persisted run counter.
func (s *FileStore) SaveRunCount(ctx context.Context, count int) error {
	return s.writeJSON(runCountFile, runCountRecord{RunCount: count})
}

// LoadLedger returns the persisted ledger, or an empty one if none exists.
func (s *FileStore) LoadLedger(ctx context.Context) (Ledger, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ledgerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStateCorrupt, ledgerFile, err)
	}
	if ledger == nil {
		ledger = Ledger{}
	}
	return ledger, nil
}

// SaveLedger replaces the persisted ledger.
func (s *FileStore) SaveLedger(ctx context.Context, ledger Ledger) error {
	return s.writeJSON(ledgerFile, ledger)
}

// writeJSON replaces the target file via a rename so a crash mid-write never
// leaves a truncated record behind.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
