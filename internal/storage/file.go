package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"coupon-share-service/internal/apperr"
)

// FileStore keeps one PNG per code in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(code string) (string, error) {
	if err := checkKey(code); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, code+imageExt), nil
}

func (s *FileStore) Has(_ context.Context, code string) (bool, error) {
	p, err := s.path(code)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Get(_ context.Context, code string) ([]byte, error) {
	p, err := s.path(code)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.CacheMiss(code)
		}
		return nil, err
	}
	return data, nil
}

// Put writes through a temp file and renames it into place, so readers
// never observe a partial image.
func (s *FileStore) Put(_ context.Context, code string, data []byte) error {
	p, err := s.path(code)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+code+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, code string) (bool, error) {
	p, err := s.path(code)
	if err != nil {
		return false, err
	}
	err = os.Remove(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
