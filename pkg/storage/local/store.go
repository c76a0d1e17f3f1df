package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
)

// Store writes uploads into a directory on the local filesystem.
type Store struct {
	dir   string
	now   func() time.Time
	write func(f *os.File, data []byte) (int, error)
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now, write: (*os.File).Write}, nil
}

// Save writes data under a fresh "{millis}_{name}" file and returns its path.
// Existing files are never overwritten.
func (s *Store) Save(ctx context.Context, fileName, _ string, data []byte) (string, error) {
	name, err := storage.PutUnique(ctx, s.now(), fileName, func(_ context.Context, name string) error {
		return s.create(filepath.Join(s.dir, name), data)
	})
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Store) create(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return storage.ErrObjectExists
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := s.write(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (s *Store) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", location, storage.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) Delete(_ context.Context, location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Ping checks that the directory still exists.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
