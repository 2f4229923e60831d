package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobHandle is the opaque identifier returned for a Job at submission time.
type JobHandle string

// VideoMeta describes one video discovered for a job.
type VideoMeta struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Uploader string `json:"uploader,omitempty"`
}

// Progress is the byte level progress of the video currently being fetched.
// Every field is optional on the wire. Byte counts may be fractional when
// they come from an estimate.
type Progress struct {
	Percent    *float64 `json:"percent,omitempty"`
	Downloaded *float64 `json:"downloaded,omitempty"`
	Total      *float64 `json:"total,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	ETA        *float64 `json:"eta,omitempty"`
}

// ProgressSnapshot is one point-in-time report pushed over the progress stream.
type ProgressSnapshot struct {
	Progress    *Progress   `json:"progress,omitempty"`
	Videos      []VideoMeta `json:"videos,omitempty"`
	Completed   bool        `json:"completed"`
	DownloadURL string      `json:"download_url"`
	Error       string      `json:"error"`
}

// Job is a backend unit of work processing one batch of links.
type Job struct {
	ID          uuid.UUID   `json:"id"`
	Status      JobStatus   `json:"status"`
	Videos      []VideoMeta `json:"videos"`
	Progress    Progress    `json:"progress"`
	DownloadURL string      `json:"download_url,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Snapshot renders the job in its progress stream wire form.
func (j *Job) Snapshot() ProgressSnapshot {
	videos := make([]VideoMeta, len(j.Videos))
	copy(videos, j.Videos)

	progress := j.Progress
	return ProgressSnapshot{
		Progress:    &progress,
		Videos:      videos,
		Completed:   j.Status == JobStatusCompleted,
		DownloadURL: j.DownloadURL,
		Error:       j.Error,
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	c.Videos = make([]VideoMeta, len(j.Videos))
	copy(c.Videos, j.Videos)
	return &c
}
