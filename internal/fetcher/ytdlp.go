// Package fetcher drives the yt-dlp binary to read video metadata and
// download videos.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

// DefaultFormat prefers an mp4 video with m4a audio merged into mp4.
const DefaultFormat = "bv*[ext=mp4]+ba[ext=m4a]/bv*+ba/b"

// Metadata is the subset of yt-dlp's info JSON used by the backend.
type Metadata struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
}

// YtDlp runs the local yt-dlp binary.
type YtDlp struct {
	binaryPath string
	format     string
	logger     *slog.Logger
}

// NewYtDlp creates a YtDlp using the binary at binaryPath and the given
// format selector. An empty format selects DefaultFormat.
func NewYtDlp(binaryPath, format string, logger *slog.Logger) *YtDlp {
	if format == "" {
		format = DefaultFormat
	}
	return &YtDlp{
		binaryPath: binaryPath,
		format:     format,
		logger:     logger,
	}
}

// Probe reads the metadata of a single video without downloading it.
func (y *YtDlp) Probe(ctx context.Context, videoURL string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, y.binaryPath,
		"-J", "--no-warnings", "--no-playlist", "--skip-download", videoURL)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp probe failed: %w: %s", err, lastErrorLine(stderr.String()))
	}

	var meta Metadata
	if err := json.Unmarshal(out.Bytes(), &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return meta, nil
}

// Fetch downloads videoURL into dir and returns the path of the produced
// file, or an empty path when yt-dlp produced nothing. onProgress is called
// for every progress tick.
func (y *YtDlp) Fetch(ctx context.Context, videoURL, dir string, onProgress func(Update)) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, y.binaryPath,
		"-f", y.format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--restrict-filenames",
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"--progress-template", progressTemplate,
		videoURL,
	)

	var (
		mu        sync.Mutex
		errorLine string
	)
	report := func(line string) bool {
		u, ok := ParseProgressLine(line)
		if ok && onProgress != nil {
			mu.Lock()
			onProgress(u)
			mu.Unlock()
		}
		return ok
	}
	stdout := NewLineWriter(func(line string) {
		report(line)
	})
	stderr := NewLineWriter(func(line string) {
		line = strings.TrimSpace(stripansi.Strip(line))
		if report(line) {
			return
		}
		if strings.HasPrefix(line, "ERROR:") {
			mu.Lock()
			errorLine = line
			mu.Unlock()
		}
		y.logger.Debug("yt-dlp", "line", line)
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	y.logger.Debug("starting yt-dlp", "url", videoURL, "dir", dir)
	err := cmd.Run()
	stdout.Close()
	stderr.Close()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		mu.Lock()
		msg := errorLine
		mu.Unlock()
		if msg != "" {
			return "", errors.New(msg)
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	return producedFile(dir)
}

// producedFile returns the first finished file in dir by name.
func producedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", nil
	}

	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stripansi.Strip(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
