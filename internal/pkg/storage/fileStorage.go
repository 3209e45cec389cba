package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ds124wfegd/imagestudio/internal/entity"
)

// FileStorage reads and writes files under a base directory. Absolute paths
// bypass the base.
type FileStorage interface {
	Save(path string, data io.Reader, overwrite bool) error
	Get(path string) (io.ReadCloser, error)
	Exists(path string) bool
	Path(path string) string
}

type fileStorage struct {
	basePath string
}

func NewFileStorage(basePath string) FileStorage {
	return &fileStorage{basePath: basePath}
}

func (s *fileStorage) Path(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.basePath, path)
}

// Save writes data to path, creating parent directories. Without overwrite
// an existing file yields entity.ErrFileExists. A failed copy removes the
// partial file.
func (s *fileStorage) Save(path string, data io.Reader, overwrite bool) error {
	fullPath := s.Path(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(fullPath, flags, 0644)
	if os.IsExist(err) {
		return fmt.Errorf("%s: %w", fullPath, entity.ErrFileExists)
	}
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(fullPath)
		return err
	}
	return file.Close()
}

func (s *fileStorage) Get(path string) (io.ReadCloser, error) {
	return os.Open(s.Path(path))
}

func (s *fileStorage) Exists(path string) bool {
	_, err := os.Stat(s.Path(path))
	return !os.IsNotExist(err)
}
