package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
	"github.com/veranemoloko/vidbatch/internal/metrics"
	"github.com/veranemoloko/vidbatch/internal/validation"
)

// JobServiceI defines the job operations the handlers need.
type JobServiceI interface {
	CreateJob(ctx context.Context, rawText string) (*domain.Job, error)
	Snapshot(ctx context.Context, id uuid.UUID) (domain.ProgressSnapshot, error)
	OpenArtifact(ctx context.Context, id uuid.UUID, filename string) (*os.File, error)
	ReleaseArtifact(ctx context.Context, id uuid.UUID) error
}

// JobHandler handles HTTP requests for jobs.
type JobHandler struct {
	jobService       JobServiceI
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewJobHandler creates a new JobHandler pushing progress every progressInterval.
func NewJobHandler(jobService JobServiceI, progressInterval time.Duration, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobService:       jobService,
		progressInterval: progressInterval,
		logger:           logger,
	}
}

// CreateJob handles POST /api/download.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, errpkg.ErrMissingVideoURLs.Error())
		return
	}

	if err := validation.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, errpkg.ErrMissingVideoURLs.Error())
		return
	}

	job, err := h.jobService.CreateJob(ctx, *req.VideoURLs)
	if err != nil {
		if errors.Is(err, errpkg.ErrNoValidURLs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, domain.CreateJobResponse{JobID: job.ID.String()})
}

// Progress handles GET /api/progress/{jobID}. It pushes the job snapshot as
// a server-sent event every progress interval and ends the stream after the
// first completed or failed snapshot.
func (h *JobHandler) Progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, errpkg.ErrJobNotFound.Error())
		return
	}

	snap, err := h.jobService.Snapshot(ctx, jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}

	rc := http.NewResponseController(w)
	// streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	ticker := time.NewTicker(h.progressInterval)
	defer ticker.Stop()

	for {
		if err := sse.Encode(w, sse.Event{Data: snap}); err != nil {
			h.logger.Debug("progress stream write failed", "job_id", jobID, "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.Debug("progress stream flush failed", "job_id", jobID, "error", err)
			return
		}

		if snap.Completed || snap.Error != "" {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err = h.jobService.Snapshot(ctx, jobID)
		if err != nil {
			h.logger.Debug("progress stream ended", "job_id", jobID, "error", err)
			return
		}
	}
}

// DownloadFile handles GET /download_file/{jobID}/{filename}. The job and
// its files are deleted once the response was sent.
func (h *JobHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, errpkg.ErrArtifactNotFound.Error())
		return
	}
	filename := chi.URLParam(r, "filename")

	f, err := h.jobService.OpenArtifact(ctx, jobID, filename)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat artifact", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, info.ModTime(), f)

	if err := h.jobService.ReleaseArtifact(context.WithoutCancel(ctx), jobID); err != nil {
		h.logger.Error("cleanup failed", "job_id", jobID, "error", err)
	}
}

func (h *JobHandler) writeLookupError(w http.ResponseWriter, jobID uuid.UUID, err error) {
	switch {
	case errors.Is(err, errpkg.ErrJobNotFound), errors.Is(err, errpkg.ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("job lookup failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ErrorResponse{Error: message})
}
