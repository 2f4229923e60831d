package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/vidbatch/internal/config"
	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
	"github.com/veranemoloko/vidbatch/internal/fetcher"
	"github.com/veranemoloko/vidbatch/internal/metrics"
	"github.com/veranemoloko/vidbatch/internal/repository"
	"github.com/veranemoloko/vidbatch/internal/storage"
	"github.com/veranemoloko/vidbatch/internal/validation"
	"github.com/veranemoloko/vidbatch/internal/videoid"
)

// Prober reads the metadata of a single video.
type Prober interface {
	Probe(ctx context.Context, videoURL string) (fetcher.Metadata, error)
}

// JobRunner processes a job and owns its artifact directory.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID, ids []videoid.ID) error
	JobStorage(jobID uuid.UUID) *storage.FileStorage
}

// JobService creates jobs, runs them in the background and hands out their
// progress and artifacts.
type JobService struct {
	jobs   *repository.JobStorage
	prober Prober
	runner JobRunner
	cfg    *config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobService creates a JobService. Background jobs run until Shutdown.
func NewJobService(jobs *repository.JobStorage, prober Prober, runner JobRunner, cfg *config.Config, logger *slog.Logger) *JobService {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobService{
		jobs:   jobs,
		prober: prober,
		runner: runner,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// CreateJob starts a job for every video link in the newline delimited
// rawText. Links that do not point at a video are ignored; if none is left
// the submission is rejected with ErrNoValidURLs.
func (s *JobService) CreateJob(ctx context.Context, rawText string) (*domain.Job, error) {
	ids, skipped := validation.VideoIDs(videoid.SplitLinks(rawText))
	for _, err := range skipped {
		s.logger.Debug("skipping link", "error", err)
	}
	if len(ids) == 0 {
		metrics.JobsRejected.Inc()
		return nil, errpkg.ErrNoValidURLs
	}

	videos, err := s.probeAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &domain.Job{
		ID:        uuid.New(),
		Status:    domain.JobStatusPending,
		Videos:    videos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	metrics.JobsCreated.Inc()
	s.logger.Info("job created", "job_id", job.ID, "videos_count", len(videos))

	s.launch(job.ID, ids)
	return job, nil
}

// probeAll reads titles concurrently within ProbeTimeout for the whole batch.
// A video whose metadata cannot be read in time is titled with its identifier.
func (s *JobService) probeAll(ctx context.Context, ids []videoid.ID) ([]domain.VideoMeta, error) {
	videos := make([]domain.VideoMeta, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ProbeConcurrency)

	probeCtx, cancel := context.WithTimeout(gctx, s.cfg.ProbeTimeout)
	defer cancel()

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			videos[i] = s.probe(probeCtx, id)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe videos: %w", err)
	}
	return videos, nil
}

func (s *JobService) probe(ctx context.Context, id videoid.ID) domain.VideoMeta {
	meta := domain.VideoMeta{ID: string(id), Title: string(id)}
	if ctx.Err() != nil {
		return meta
	}

	info, err := s.prober.Probe(ctx, id.WatchURL())
	if err != nil {
		s.logger.Warn("failed to read video metadata", "video_id", id, "error", err)
		return meta
	}

	if info.Title != "" {
		meta.Title = info.Title
	}
	meta.Uploader = info.Uploader
	return meta
}

func (s *JobService) launch(jobID uuid.UUID, ids []videoid.ID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runner.Run(s.ctx, jobID, ids); err != nil {
			s.logger.Error("failed to process job", "job_id", jobID, "error", err)
		}
	}()
}

// Snapshot returns the current progress report of a job.
func (s *JobService) Snapshot(ctx context.Context, id uuid.UUID) (domain.ProgressSnapshot, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}
	return job.Snapshot(), nil
}

// OpenArtifact opens filename from the artifact directory of a job.
func (s *JobService) OpenArtifact(ctx context.Context, id uuid.UUID, filename string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jobFS := s.runner.JobStorage(id)
	if !jobFS.FileExists(filename) {
		return nil, errpkg.ErrArtifactNotFound
	}

	f, err := jobFS.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errpkg.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// ReleaseArtifact deletes the artifact directory and the job once the
// artifact has been sent.
func (s *JobService) ReleaseArtifact(ctx context.Context, id uuid.UUID) error {
	if err := s.runner.JobStorage(id).RemoveAll(); err != nil {
		return fmt.Errorf("remove job dir: %w", err)
	}
	if err := s.jobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	metrics.ArtifactsServed.Inc()
	s.logger.Info("artifact released", "job_id", id)
	return nil
}

// RecoverJobs restarts jobs left pending or downloading by a previous run.
func (s *JobService) RecoverJobs(ctx context.Context) error {
	pending, err := s.jobs.GetJobsByStatus(ctx, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	downloading, err := s.jobs.GetJobsByStatus(ctx, domain.JobStatusDownloading)
	if err != nil {
		return fmt.Errorf("failed to get downloading jobs: %w", err)
	}

	for _, job := range append(pending, downloading...) {
		ids := make([]videoid.ID, 0, len(job.Videos))
		for _, v := range job.Videos {
			ids = append(ids, videoid.ID(v.ID))
		}

		s.logger.Info("recovering job", "job_id", job.ID, "status", job.Status)
		s.launch(job.ID, ids)
	}

	return nil
}

// RunRetention removes finished jobs older than the configured retention
// every interval until ctx is done.
func (s *JobService) RunRetention(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}

// SweepExpired removes finished jobs not updated within the retention
// window together with their artifacts.
func (s *JobService) SweepExpired(ctx context.Context) int {
	removed, err := s.jobs.ClearOld(ctx, time.Now().Add(-s.cfg.JobRetention))
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
	}

	for _, job := range removed {
		if err := s.runner.JobStorage(job.ID).RemoveAll(); err != nil {
			s.logger.Error("failed to remove expired job dir", "job_id", job.ID, "error", err)
		}
	}

	if len(removed) > 0 {
		metrics.JobsExpired.Add(float64(len(removed)))
		s.logger.Info("expired jobs removed", "count", len(removed))
	}
	return len(removed)
}

// Shutdown stops running jobs and waits for them to return.
func (s *JobService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
