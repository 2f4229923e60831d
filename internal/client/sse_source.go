package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/r3labs/sse/v2"
	backoff "gopkg.in/cenkalti/backoff.v1"

	"github.com/veranemoloko/vidbatch/internal/domain"
)

// maxEventSize bounds one progress event. Snapshots carry the whole video
// list, so they can exceed the reader's 64 KiB default.
const maxEventSize = 8 << 20

// SSESource reads a job's progress stream from the backend's server-sent
// events endpoint.
type SSESource struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSSESource creates an SSESource for the backend at baseURL.
func NewSSESource(baseURL *url.URL, httpClient *http.Client, logger *slog.Logger) *SSESource {
	return &SSESource{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Stream implements progress.Source. The stream is never reconnected: any
// failure ends it.
func (s *SSESource) Stream(ctx context.Context, handle domain.JobHandle, out chan<- []byte) error {
	endpoint := ProgressURL(s.baseURL, handle)

	c := sse.NewClient(endpoint, sse.ClientMaxBufferSize(maxEventSize))
	c.Connection = s.httpClient
	c.ReconnectStrategy = &backoff.StopBackOff{}

	s.logger.Debug("subscribing to progress stream", "job_id", handle, "url", endpoint)

	err := c.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)

		select {
		case out <- data:
		case <-ctx.Done():
		}
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("progress stream %s: %w", handle, err)
	}

	s.logger.Debug("progress stream ended by server", "job_id", handle)
	return nil
}
