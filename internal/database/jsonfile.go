package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"uno/internal/model"
)

// JSONStore keeps the whole ledger as one JSON object keyed by player name,
// rewritten in full on every save.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the ledger file. A missing file is an empty ledger.
func (s *JSONStore) Load(ctx context.Context) (map[string]model.PlayerStats, error) {
	stats := make(map[string]model.PlayerStats)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return stats, nil
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return stats, nil
}

// Save writes to a temp file next to the ledger and renames it over the old
// one, so a crash mid-write leaves the previous ledger intact.
func (s *JSONStore) Save(ctx context.Context, snapshot map[string]model.PlayerStats) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }
