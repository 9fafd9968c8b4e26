package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON document per symbol. Writes go to a temp file
// that is synced and renamed over the target, so readers see either the old
// or the new record.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(symbol string) string {
	return filepath.Join(s.dir, Key(symbol)+"_position.json")
}

func (s *FileStore) Save(ctx context.Context, position Position) error {
	if err := position.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(position, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".position-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write position: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync position: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close position file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(position.Symbol)); err != nil {
		return fmt.Errorf("replace position file: %w", err)
	}
	return syncDir(s.dir)
}

func (s *FileStore) Load(ctx context.Context, symbol string) (Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(symbol))
	if errors.Is(err, os.ErrNotExist) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, err
	}
	var position Position
	if err := json.Unmarshal(data, &position); err != nil {
		return Position{}, false, fmt.Errorf("decode position for %s: %w", symbol, err)
	}
	return position, true, nil
}

func (s *FileStore) Close() error {
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// some platforms do not support fsync on directories
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync state directory: %w", err)
	}
	return nil
}
