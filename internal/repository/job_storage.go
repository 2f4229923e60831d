package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map"

	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
)

// JobStorage keeps jobs in memory in creation order. When a state file is
// configured, every status change is persisted to it and restored on start.
type JobStorage struct {
	mu   sync.RWMutex
	jobs *orderedmap.OrderedMap
	file string
}

// NewJobStorage creates a JobStorage. An empty filePath disables persistence.
func NewJobStorage(filePath string) (*JobStorage, error) {
	repo := &JobStorage{
		jobs: orderedmap.New(),
	}
	if filePath == "" {
		slog.Info("job repository initialized in memory")
		return repo, nil
	}

	repo.file = filepath.Clean(filePath)
	if err := repo.restoreJobs(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	slog.Info("job repository initialized", "file_path", repo.file, "jobs_count", repo.jobs.Len())
	return repo, nil
}

func (r *JobStorage) restoreJobs() error {
	if isFileNotExist(r.file) {
		slog.Info("State file does not exist, starting with empty state", "file_path", r.file)
		return nil
	}

	data, err := os.ReadFile(r.file)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		slog.Warn("State file is empty")
		return nil
	}

	var jobs []*domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	for _, job := range jobs {
		r.jobs.Set(job.ID, job)
	}

	slog.Info("State loaded from file", "jobs_count", len(jobs), "file_path", r.file)
	return nil
}

func isFileNotExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return os.IsNotExist(err)
}

func (r *JobStorage) persistJobs() error {
	if r.file == "" {
		return nil
	}

	r.mu.RLock()
	jobs := make([]*domain.Job, 0, r.jobs.Len())
	for pair := r.jobs.Oldest(); pair != nil; pair = pair.Next() {
		jobs = append(jobs, pair.Value.(*domain.Job).Clone())
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}

	tempFile := r.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, r.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	slog.Debug("State saved to file", "jobs_count", len(jobs), "file_path", r.file)
	return nil
}

// Create adds a new job.
func (r *JobStorage) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.jobs.Set(job.ID, job.Clone())
	r.mu.Unlock()

	if err := r.persistJobs(); err != nil {
		return fmt.Errorf("failed to save state after creating job: %w", err)
	}

	slog.Debug("Job created", "job_id", job.ID)
	return nil
}

// Get returns a copy of the job with the given ID.
func (r *JobStorage) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.jobs.Get(id)
	if !ok {
		return nil, errpkg.ErrJobNotFound
	}
	return v.(*domain.Job).Clone(), nil
}

// Update applies fn to the stored job under the write lock. The state file
// is rewritten only when fn changed the job's status.
func (r *JobStorage) Update(ctx context.Context, id uuid.UUID, fn func(job *domain.Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	v, ok := r.jobs.Get(id)
	if !ok {
		r.mu.Unlock()
		return errpkg.ErrJobNotFound
	}
	job := v.(*domain.Job)
	before := job.Status
	fn(job)
	job.UpdatedAt = time.Now()
	after := job.Status
	r.mu.Unlock()

	if before == after {
		return nil
	}

	if err := r.persistJobs(); err != nil {
		return fmt.Errorf("failed to save state after updating job: %w", err)
	}

	slog.Debug("Job updated", "job_id", id, "status", after)
	return nil
}

// Delete removes a job. Deleting an unknown job is not an error.
func (r *JobStorage) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	_, existed := r.jobs.Delete(id)
	r.mu.Unlock()

	if !existed {
		return nil
	}

	if err := r.persistJobs(); err != nil {
		return fmt.Errorf("failed to save state after deleting job: %w", err)
	}

	slog.Debug("Job deleted", "job_id", id)
	return nil
}

// GetJobsByStatus returns copies of all jobs with the specified status in
// creation order.
func (r *JobStorage) GetJobsByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var filtered []*domain.Job
	for pair := r.jobs.Oldest(); pair != nil; pair = pair.Next() {
		job := pair.Value.(*domain.Job)
		if job.Status == status {
			filtered = append(filtered, job.Clone())
		}
	}
	r.mu.RUnlock()

	return filtered, nil
}

// ClearOld removes finished jobs last updated before cutoff and returns them.
func (r *JobStorage) ClearOld(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	var removed []*domain.Job
	for pair := r.jobs.Oldest(); pair != nil; {
		next := pair.Next()
		job := pair.Value.(*domain.Job)
		if job.Status.IsFinished() && job.UpdatedAt.Before(cutoff) {
			r.jobs.Delete(pair.Key)
			removed = append(removed, job)
		}
		pair = next
	}
	r.mu.Unlock()

	if len(removed) == 0 {
		return nil, nil
	}

	if err := r.persistJobs(); err != nil {
		return removed, fmt.Errorf("failed to save state after clearing jobs: %w", err)
	}
	return removed, nil
}

// Len returns the number of stored jobs.
func (r *JobStorage) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs.Len()
}
