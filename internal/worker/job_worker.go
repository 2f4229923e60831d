package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/vidbatch/internal/domain"
	"github.com/veranemoloko/vidbatch/internal/fetcher"
	"github.com/veranemoloko/vidbatch/internal/metrics"
	"github.com/veranemoloko/vidbatch/internal/repository"
	"github.com/veranemoloko/vidbatch/internal/storage"
	"github.com/veranemoloko/vidbatch/internal/videoid"
)

const (
	archiveName      = "videos.zip"
	noFilesMessage   = "No files downloaded."
	jobDirPrefix     = "job_"
	downloadFileRoot = "/download_file/"
)

// Fetcher downloads a single video into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, videoURL, dir string, onProgress func(fetcher.Update)) (string, error)
}

// JobWorker downloads every video of a job and publishes the artifact.
type JobWorker struct {
	jobs    *repository.JobStorage
	fetcher Fetcher
	workDir string
	logger  *slog.Logger
}

// NewJobWorker creates a JobWorker keeping temporary and artifact files
// under workDir.
func NewJobWorker(jobs *repository.JobStorage, fetcher Fetcher, workDir string, logger *slog.Logger) *JobWorker {
	return &JobWorker{
		jobs:    jobs,
		fetcher: fetcher,
		workDir: workDir,
		logger:  logger,
	}
}

// JobStorage returns the file storage of the artifact directory of jobID.
func (w *JobWorker) JobStorage(jobID uuid.UUID) *storage.FileStorage {
	return storage.NewFileStorage(filepath.Join(w.workDir, jobDirPrefix+jobID.String()))
}

// DownloadURL returns the path an artifact named filename is served at.
func DownloadURL(jobID uuid.UUID, filename string) string {
	return downloadFileRoot + jobID.String() + "/" + url.PathEscape(filename)
}

// Run processes the job sequentially, one video at a time. Any failure
// stops the job and records its message; the temporary directory is always
// removed.
func (w *JobWorker) Run(ctx context.Context, jobID uuid.UUID, ids []videoid.ID) error {
	logger := w.logger.With("job_id", jobID)
	logger.Info("start processing job", "videos_count", len(ids))

	if err := w.jobs.Update(ctx, jobID, func(job *domain.Job) {
		job.Status = domain.JobStatusDownloading
		job.Progress = domain.Progress{}
		job.Error = ""
	}); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if err := os.MkdirAll(w.workDir, 0o755); err != nil {
		return w.fail(ctx, jobID, err.Error())
	}
	tempDir, err := os.MkdirTemp(w.workDir, "tmp_")
	if err != nil {
		return w.fail(ctx, jobID, err.Error())
	}
	temp := storage.NewFileStorage(tempDir)
	defer func() {
		if err := temp.RemoveAll(); err != nil {
			logger.Error("failed to remove temp dir", "dir", tempDir, "error", err)
		}
	}()

	var files []string
	for i, id := range ids {
		if !videoid.Valid(id) {
			return w.fail(ctx, jobID, fmt.Sprintf("Invalid video ID: %s", id))
		}

		file, err := w.downloadVideo(ctx, jobID, id, filepath.Join(tempDir, strconv.Itoa(i)))
		if err != nil {
			return w.fail(ctx, jobID, err.Error())
		}
		if file != "" {
			files = append(files, file)
		}
	}

	if len(files) == 0 {
		return w.fail(ctx, jobID, noFilesMessage)
	}

	artifact, err := w.publish(jobID, files)
	if err != nil {
		return w.fail(ctx, jobID, err.Error())
	}

	name := filepath.Base(artifact)
	if err := w.jobs.Update(ctx, jobID, func(job *domain.Job) {
		job.Status = domain.JobStatusCompleted
		job.DownloadURL = DownloadURL(jobID, name)
	}); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	metrics.JobsCompleted.Inc()
	logger.Info("job completed", "artifact", name, "videos_downloaded", len(files))
	return nil
}

func (w *JobWorker) downloadVideo(ctx context.Context, jobID uuid.UUID, id videoid.ID, dir string) (string, error) {
	metrics.DownloadsTotal.Inc()
	startTime := time.Now()

	file, err := w.fetcher.Fetch(ctx, id.WatchURL(), dir, func(u fetcher.Update) {
		progress := u.Progress()
		if err := w.jobs.Update(ctx, jobID, func(job *domain.Job) {
			job.Progress = progress
		}); err != nil {
			w.logger.Debug("progress update dropped", "job_id", jobID, "error", err)
		}
	})
	if err != nil {
		metrics.DownloadsFailed.Inc()
		w.logger.Error("download failed", "job_id", jobID, "video_id", id, "error", err)
		return "", err
	}

	metrics.DownloadsSuccess.Inc()
	metrics.DownloadDuration.Observe(time.Since(startTime).Seconds())
	if file != "" {
		if size, err := storage.NewFileStorage(filepath.Dir(file)).GetFileSize(filepath.Base(file)); err == nil {
			metrics.DownloadBytes.Add(float64(size))
		}
	}

	w.logger.Info("download completed", "job_id", jobID, "video_id", id, "file", file)
	return file, nil
}

// publish moves a single file into the job directory, or zips several.
func (w *JobWorker) publish(jobID uuid.UUID, files []string) (string, error) {
	jobFS := w.JobStorage(jobID)

	var (
		artifact string
		err      error
	)
	if len(files) == 1 {
		artifact, err = jobFS.MoveIn(files[0], filepath.Base(files[0]))
	} else {
		artifact, err = jobFS.ZipFiles(files, archiveName)
	}
	if err != nil {
		return "", err
	}

	size, err := jobFS.GetFileSize(filepath.Base(artifact))
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	w.logger.Info("artifact published", "job_id", jobID, "dir", jobFS.Dir(), "size", size)
	return artifact, nil
}

// fail records message as the job error. A job stopped by ctx is left
// unfinished so it can be recovered on the next start.
func (w *JobWorker) fail(ctx context.Context, jobID uuid.UUID, message string) error {
	if err := ctx.Err(); err != nil {
		w.logger.Warn("job interrupted", "job_id", jobID, "error", err)
		return err
	}

	metrics.JobsFailed.Inc()
	w.logger.Warn("job failed", "job_id", jobID, "error", message)

	if err := w.jobs.Update(ctx, jobID, func(job *domain.Job) {
		job.Status = domain.JobStatusFailed
		job.Error = message
	}); err != nil {
		w.logger.Error("failed to record job failure", "job_id", jobID, "error", err)
	}
	return errors.New(message)
}
