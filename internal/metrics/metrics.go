package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_jobs_created_total",
		Help: "Total number of jobs created",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_jobs_completed_total",
		Help: "Total number of jobs completed",
	})

	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_jobs_failed_total",
		Help: "Total number of jobs failed",
	})

	JobsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_jobs_rejected_total",
		Help: "Total number of submissions without a usable link",
	})

	JobsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_jobs_expired_total",
		Help: "Total number of finished jobs removed by the retention sweep",
	})

	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_downloads_total",
		Help: "Total number of video download attempts",
	})

	DownloadsSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_downloads_success_total",
		Help: "Total number of successful video downloads",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_downloads_failed_total",
		Help: "Total number of failed video downloads",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidbatch_download_duration_seconds",
		Help:    "Video download duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_download_bytes_total",
		Help: "Total bytes of downloaded videos",
	})

	ArtifactsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbatch_artifacts_served_total",
		Help: "Total number of artifacts sent to clients",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidbatch_active_progress_streams",
		Help: "Number of open progress streams",
	})
)
