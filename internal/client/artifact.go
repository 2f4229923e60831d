package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/veranemoloko/vidbatch/internal/storage"
)

// ArtifactFetcher downloads the artifact a completed job hands off to.
type ArtifactFetcher struct {
	baseURL     *url.URL
	httpClient  *http.Client
	fileStorage *storage.FileStorage
	logger      *slog.Logger
}

// NewArtifactFetcher creates an ArtifactFetcher saving into fileStorage.
func NewArtifactFetcher(baseURL *url.URL, httpClient *http.Client, fileStorage *storage.FileStorage, logger *slog.Logger) *ArtifactFetcher {
	return &ArtifactFetcher{
		baseURL:     baseURL,
		httpClient:  httpClient,
		fileStorage: fileStorage,
		logger:      logger,
	}
}

// Fetch downloads downloadURL, resolved against the backend address, and
// returns the saved file name and its size.
func (f *ArtifactFetcher) Fetch(ctx context.Context, downloadURL string) (string, int64, error) {
	target, err := ResolveURL(f.baseURL, downloadURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse download url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("download artifact: bad status: %s", resp.Status)
	}

	filename := artifactName(resp.Header.Get("Content-Disposition"), target.Path)

	file, err := f.fileStorage.CreateFile(filename)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	written, err := copyWithContext(ctx, file, resp.Body)
	if err != nil {
		f.fileStorage.Remove(filename)
		return "", 0, fmt.Errorf("save artifact: %w", err)
	}

	f.logger.Info("artifact downloaded", "url", target.String(), "file", filename, "bytes", written)
	return filename, written, nil
}

func artifactName(contentDisposition, urlPath string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := filepath.Base(params["filename"]); name != "." && name != "/" && params["filename"] != "" {
				return name
			}
		}
	}

	name := path.Base(urlPath)
	if name == "." || name == "/" || name == "" {
		return "download.bin"
	}
	return name
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, err := dst.Write(buf[0:nr])
				if nw > 0 {
					total += int64(nw)
				}
				if err != nil {
					return total, err
				}
				if nr != nw {
					return total, io.ErrShortWrite
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
	}
}
