// Package client talks to the batch download backend: it submits jobs,
// subscribes to their progress stream and fetches the produced artifact.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
)

const (
	submitPath        = "/api/download"
	progressPath      = "/api/progress/"
	defaultRejectText = "Download failed."
)

// RejectedError is returned when the backend did not accept a submission.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected submission (status %d): %s", e.StatusCode, e.Message)
}

// UserMessage returns the text shown to the user, verbatim from the backend
// when it supplied one.
func (e *RejectedError) UserMessage() string {
	return e.Message
}

// Submitter starts batch download jobs on the backend.
type Submitter struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSubmitter creates a Submitter for the backend at baseURL.
func NewSubmitter(baseURL *url.URL, httpClient *http.Client, logger *slog.Logger) *Submitter {
	return &Submitter{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit sends the batch of links to the backend and returns the handle of
// the created job. Empty input fails with ErrEmptyInput without a request.
func (s *Submitter) Submit(ctx context.Context, rawText string) (domain.JobHandle, error) {
	videoURLs := strings.TrimSpace(rawText)
	if videoURLs == "" {
		return "", errpkg.ErrEmptyInput
	}

	body, err := json.Marshal(domain.CreateJobRequest{VideoURLs: &videoURLs})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := s.baseURL.JoinPath(submitPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		domain.CreateJobResponse
		domain.ErrorResponse
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := payload.Error
		if decodeErr != nil || msg == "" {
			msg = defaultRejectText
		}
		s.logger.Warn("job submission rejected", "status", resp.StatusCode, "error", msg)
		return "", &RejectedError{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		s.logger.Error("failed to decode submission response", "error", decodeErr)
		return "", &RejectedError{StatusCode: resp.StatusCode, Message: defaultRejectText}
	}
	if payload.JobID == "" {
		s.logger.Error("submission response without job id", "status", resp.StatusCode)
		return "", &RejectedError{StatusCode: resp.StatusCode, Message: defaultRejectText}
	}

	s.logger.Info("job submitted", "job_id", payload.JobID)
	return domain.JobHandle(payload.JobID), nil
}

// ProgressURL returns the progress stream endpoint of handle.
func ProgressURL(baseURL *url.URL, handle domain.JobHandle) string {
	return baseURL.JoinPath(progressPath, url.PathEscape(string(handle))).String()
}

// ResolveURL resolves a link handed out by the backend. Links without a host
// are taken relative to the path of baseURL, so a backend mounted under a
// path prefix keeps it.
func ResolveURL(baseURL *url.URL, link string) (*url.URL, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() || ref.Host != "" {
		return ref, nil
	}

	u := baseURL.JoinPath(ref.EscapedPath())
	u.RawQuery = ref.RawQuery
	return u, nil
}
