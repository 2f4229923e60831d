package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ZipFiles writes every file in files into a zip archive named dstFilename.
// Entries are stored under their base names.
func (s *FileStorage) ZipFiles(files []string, dstFilename string) (string, error) {
	dst, err := s.CreateFile(dstFilename)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer dst.Close()

	zw := zip.NewWriter(dst)
	for _, file := range files {
		if err := addToZip(zw, file); err != nil {
			zw.Close()
			os.Remove(dst.Name())
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return dst.Name(), nil
}

func addToZip(zw *zip.Writer, file string) error {
	src, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer src.Close()

	w, err := zw.Create(filepath.Base(file))
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", file, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write %s to archive: %w", file, err)
	}
	return nil
}
