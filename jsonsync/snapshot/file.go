package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileAdapter keeps one <docID>.json file per document in a directory.
type FileAdapter struct {
	basePath string
	mutex    sync.RWMutex
}

// NewFileAdapter creates basePath if needed.
func NewFileAdapter(basePath string) (*FileAdapter, error) {
	if basePath == "" {
		basePath = "snapshots"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FileAdapter{basePath: basePath}, nil
}

func (a *FileAdapter) filePath(docID string) (string, error) {
	if docID == "" || strings.ContainsAny(docID, `/\`) || docID == "." || docID == ".." {
		return "", fmt.Errorf("invalid document id: %q", docID)
	}
	return filepath.Join(a.basePath, docID+".json"), nil
}

// Save writes to a temporary file and renames it into place.
func (a *FileAdapter) Save(ctx context.Context, docID string, data []byte) error {
	path, err := a.filePath(docID)
	if err != nil {
		return err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func (a *FileAdapter) Load(ctx context.Context, docID string) ([]byte, error) {
	path, err := a.filePath(docID)
	if err != nil {
		return nil, err
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (a *FileAdapter) List(ctx context.Context) ([]string, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && filepath.Ext(name) == ".json" {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

func (a *FileAdapter) Delete(ctx context.Context, docID string) error {
	path, err := a.filePath(docID)
	if err != nil {
		return err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (a *FileAdapter) Close() error {
	return nil
}
