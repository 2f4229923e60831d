package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStorage provides methods to manage files in a specific directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage instance with the given directory.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Dir returns the storage directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

// Path returns the absolute location of filename inside the storage directory.
func (s *FileStorage) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// EnsureDir creates the storage directory if it does not exist.
func (s *FileStorage) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// CreateFile creates a new file with the given filename in the storage directory.
func (s *FileStorage) CreateFile(filename string) (*os.File, error) {
	if err := s.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	return os.Create(s.Path(filename))
}

// Open opens an existing file for reading.
func (s *FileStorage) Open(filename string) (*os.File, error) {
	return os.Open(s.Path(filename))
}

// FileExists checks whether a file exists in the storage directory.
func (s *FileStorage) FileExists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// GetFileSize returns the size of the file in bytes.
func (s *FileStorage) GetFileSize(filename string) (int64, error) {
	info, err := os.Stat(s.Path(filename))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CopyFile copies data from the provided reader to a file with the specified filename.
// Returns the number of bytes written and any error encountered.
func (s *FileStorage) CopyFile(src io.Reader, dstFilename string) (int64, error) {
	dst, err := s.CreateFile(dstFilename)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	return io.Copy(dst, src)
}

// MoveIn moves the file at src into the storage directory under dstFilename.
func (s *FileStorage) MoveIn(src, dstFilename string) (string, error) {
	if err := s.EnsureDir(); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	dst := s.Path(dstFilename)
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if _, err := s.CopyFile(in, dstFilename); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove source: %w", err)
	}
	return dst, nil
}

// Remove deletes filename from the storage directory.
func (s *FileStorage) Remove(filename string) error {
	return os.Remove(s.Path(filename))
}

// RemoveAll deletes the storage directory with everything in it.
func (s *FileStorage) RemoveAll() error {
	return os.RemoveAll(s.dir)
}
