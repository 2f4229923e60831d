package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/vidbatch/internal/config"
	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
	"github.com/veranemoloko/vidbatch/internal/fetcher"
	"github.com/veranemoloko/vidbatch/internal/repository"
	"github.com/veranemoloko/vidbatch/internal/storage"
	"github.com/veranemoloko/vidbatch/internal/videoid"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockProber struct {
	meta map[string]fetcher.Metadata
	hang bool
}

func (m *mockProber) Probe(ctx context.Context, videoURL string) (fetcher.Metadata, error) {
	if m.hang {
		<-ctx.Done()
		return fetcher.Metadata{}, ctx.Err()
	}
	meta, ok := m.meta[videoURL]
	if !ok {
		return fetcher.Metadata{}, errors.New("video unavailable")
	}
	return meta, nil
}

type runCall struct {
	jobID uuid.UUID
	ids   []videoid.ID
}

type mockRunner struct {
	dir   string
	mu    sync.Mutex
	calls []runCall
	block bool
	ran   chan runCall
}

func (m *mockRunner) Run(ctx context.Context, jobID uuid.UUID, ids []videoid.ID) error {
	call := runCall{jobID: jobID, ids: ids}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.ran != nil {
		m.ran <- call
	}
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (m *mockRunner) JobStorage(jobID uuid.UUID) *storage.FileStorage {
	return storage.NewFileStorage(filepath.Join(m.dir, "job_"+jobID.String()))
}

func testConfig() *config.Config {
	return &config.Config{
		ProbeConcurrency: 2,
		ProbeTimeout:     time.Second,
		JobRetention:     time.Hour,
	}
}

func newService(t *testing.T, runner *mockRunner) (*JobService, *repository.JobStorage) {
	t.Helper()
	jobs, err := repository.NewJobStorage("")
	require.NoError(t, err)

	prober := &mockProber{meta: map[string]fetcher.Metadata{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": {ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Uploader: "Rick Astley"},
		"https://www.youtube.com/watch?v=9bZkp7q19f0": {ID: "9bZkp7q19f0", Uploader: "officialpsy"},
	}}

	if runner.dir == "" {
		runner.dir = t.TempDir()
	}
	svc := NewJobService(jobs, prober, runner, testConfig(), newTestLogger())
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, jobs
}

func TestJobService_CreateJob(t *testing.T) {
	runner := &mockRunner{ran: make(chan runCall, 1)}
	svc, _ := newService(t, runner)

	input := "https://youtu.be/dQw4w9WgXcQ\n\n  https://example.com/x  \nhttps://www.youtube.com/watch?v=9bZkp7q19f0\nhttps://youtube.com/shorts/abcdefghijk\n"
	job, err := svc.CreateJob(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, []domain.VideoMeta{
		{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Uploader: "Rick Astley"},
		{ID: "9bZkp7q19f0", Title: "9bZkp7q19f0", Uploader: "officialpsy"},
		{ID: "abcdefghijk", Title: "abcdefghijk"},
	}, job.Videos)

	select {
	case call := <-runner.ran:
		assert.Equal(t, job.ID, call.jobID)
		assert.Equal(t, []videoid.ID{"dQw4w9WgXcQ", "9bZkp7q19f0", "abcdefghijk"}, call.ids)
	case <-time.After(time.Second):
		t.Fatal("job was not started")
	}

	snap, err := svc.Snapshot(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, snap.Completed)
	assert.Len(t, snap.Videos, 3)
}

func TestJobService_ProbeTimeoutBoundsBatch(t *testing.T) {
	jobs, err := repository.NewJobStorage("")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.ProbeConcurrency = 1
	cfg.ProbeTimeout = 200 * time.Millisecond

	runner := &mockRunner{dir: t.TempDir(), ran: make(chan runCall, 1)}
	svc := NewJobService(jobs, &mockProber{hang: true}, runner, cfg, newTestLogger())
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	ids := []string{"aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3", "aaaaaaaaaa4", "aaaaaaaaaa5", "aaaaaaaaaa6"}
	links := make([]string, len(ids))
	for i, id := range ids {
		links[i] = "https://youtu.be/" + id
	}

	start := time.Now()
	job, err := svc.CreateJob(context.Background(), strings.Join(links, "\n"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 800*time.Millisecond)

	require.Len(t, job.Videos, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, job.Videos[i].Title)
	}
}

func TestJobService_CreateJobRejected(t *testing.T) {
	svc, jobs := newService(t, &mockRunner{})

	for _, input := range []string{"", "\n \n", "https://example.com/watch?v=dQw4w9WgXcQ\nnot a link"} {
		job, err := svc.CreateJob(context.Background(), input)
		assert.ErrorIs(t, err, errpkg.ErrNoValidURLs)
		assert.Nil(t, job)
	}
	assert.Equal(t, 0, jobs.Len())
}

func TestJobService_SnapshotUnknownJob(t *testing.T) {
	svc, _ := newService(t, &mockRunner{})

	_, err := svc.Snapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errpkg.ErrJobNotFound)
}

func TestJobService_Artifacts(t *testing.T) {
	runner := &mockRunner{}
	svc, jobs := newService(t, runner)

	ctx := context.Background()
	job := &domain.Job{ID: uuid.New(), Status: domain.JobStatusCompleted}
	require.NoError(t, jobs.Create(ctx, job))

	jobFS := runner.JobStorage(job.ID)
	_, err := jobFS.CopyFile(strings.NewReader("video"), "video.mp4")
	require.NoError(t, err)

	_, err = svc.OpenArtifact(ctx, job.ID, "other.mp4")
	assert.ErrorIs(t, err, errpkg.ErrArtifactNotFound)

	f, err := svc.OpenArtifact(ctx, job.ID, "video.mp4")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "video", string(content))

	require.NoError(t, svc.ReleaseArtifact(ctx, job.ID))

	_, err = os.Stat(jobFS.Dir())
	assert.True(t, os.IsNotExist(err))
	_, err = jobs.Get(ctx, job.ID)
	assert.ErrorIs(t, err, errpkg.ErrJobNotFound)
}

func TestJobService_RecoverJobs(t *testing.T) {
	runner := &mockRunner{ran: make(chan runCall, 3)}
	svc, jobs := newService(t, runner)

	ctx := context.Background()
	pending := &domain.Job{ID: uuid.New(), Status: domain.JobStatusPending, Videos: []domain.VideoMeta{{ID: "dQw4w9WgXcQ"}}}
	downloading := &domain.Job{ID: uuid.New(), Status: domain.JobStatusDownloading, Videos: []domain.VideoMeta{{ID: "9bZkp7q19f0"}}}
	done := &domain.Job{ID: uuid.New(), Status: domain.JobStatusCompleted}
	for _, j := range []*domain.Job{pending, downloading, done} {
		require.NoError(t, jobs.Create(ctx, j))
	}

	require.NoError(t, svc.RecoverJobs(ctx))

	started := map[uuid.UUID][]videoid.ID{}
	for i := 0; i < 2; i++ {
		select {
		case call := <-runner.ran:
			started[call.jobID] = call.ids
		case <-time.After(time.Second):
			t.Fatal("recovered job was not started")
		}
	}
	assert.Equal(t, []videoid.ID{"dQw4w9WgXcQ"}, started[pending.ID])
	assert.Equal(t, []videoid.ID{"9bZkp7q19f0"}, started[downloading.ID])
	assert.NotContains(t, started, done.ID)
}

func TestJobService_SweepExpired(t *testing.T) {
	runner := &mockRunner{}
	svc, jobs := newService(t, runner)
	svc.cfg.JobRetention = time.Millisecond

	ctx := context.Background()
	finished := &domain.Job{ID: uuid.New(), Status: domain.JobStatusFailed}
	running := &domain.Job{ID: uuid.New(), Status: domain.JobStatusDownloading}
	require.NoError(t, jobs.Create(ctx, finished))
	require.NoError(t, jobs.Create(ctx, running))
	_, err := runner.JobStorage(finished.ID).CopyFile(strings.NewReader("v"), "video.mp4")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, svc.SweepExpired(ctx))
	assert.Equal(t, 1, jobs.Len())
	assert.NoDirExists(t, runner.JobStorage(finished.ID).Dir())
}

func TestJobService_ShutdownStopsJobs(t *testing.T) {
	runner := &mockRunner{block: true, ran: make(chan runCall, 1)}
	svc, _ := newService(t, runner)

	_, err := svc.CreateJob(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	<-runner.ran

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Shutdown(ctx))
}
