package storage

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestFileStorage_ZipFiles(t *testing.T) {
	srcDir := t.TempDir()
	files := map[string]string{
		"first.mp4":  "first video",
		"second.mp4": "second video",
	}
	var paths []string
	for name, content := range files {
		p := filepath.Join(srcDir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, p)
	}

	fs := NewFileStorage(filepath.Join(t.TempDir(), "job"))
	archive, err := fs.ZipFiles(paths, "videos.zip")
	if err != nil {
		t.Fatalf("ZipFiles error: %v", err)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)

		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		if string(content) != files[f.Name] {
			t.Errorf("entry %s: got %q, want %q", f.Name, content, files[f.Name])
		}
	}

	sort.Strings(names)
	if len(names) != 2 || names[0] != "first.mp4" || names[1] != "second.mp4" {
		t.Errorf("unexpected entries %v", names)
	}
}

func TestFileStorage_ZipFilesMissingSource(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	if _, err := fs.ZipFiles([]string{"/no/such/file.mp4"}, "videos.zip"); err == nil {
		t.Fatalf("expected error for missing source")
	}
	if fs.FileExists("videos.zip") {
		t.Errorf("expected partial archive to be removed")
	}
}
