package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"timecast/internal/config"
	"timecast/internal/fsutil"
)

// FileBlobs stores each key as <dir>/<key>.json.
type FileBlobs struct {
	dir string
}

func NewFileBlobs(dir string) *FileBlobs {
	return &FileBlobs{dir: dir}
}

func (f *FileBlobs) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("store: invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileBlobs) Get(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoBlob
	}
	return data, err
}

func (f *FileBlobs) Put(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(p, value)
}

// MemoryBlobs is an in-process namespace, used by tests and the "memory"
// backend.
type MemoryBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{data: make(map[string][]byte)}
}

func (m *MemoryBlobs) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNoBlob
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBlobs) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Open builds the EventStore selected by cfg. The returned close func is
// never nil.
func Open(cfg config.StoreConfig, loc *time.Location) (*EventStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "memory":
		return New(NewMemoryBlobs(), loc), noop, nil
	case "sqlite":
		b, err := OpenSQLiteBlobs(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return New(b, loc), b.Close, nil
	case "postgres":
		b, err := OpenPostgresBlobs(context.Background(), cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		return New(b, loc), b.Close, nil
	case "file", "":
		return New(NewFileBlobs(cfg.Path), loc), noop, nil
	default:
		return nil, noop, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
