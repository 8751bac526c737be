// Package gallery holds the durable record of generation jobs. The gallery
// is the only source of truth for past jobs; the remote backend is never
// asked to enumerate them.
package gallery

import (
	"time"

	"careflow-backend/domain/core/valueobjects"
	pkgerrors "careflow-backend/pkg/errors"
)

// JobStatus is the lifecycle state of a generation job
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusStarted  JobStatus = "started"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

// Terminal reports whether the status ends the job's lifecycle
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// IsValid reports whether the status string is a known JobStatus
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusStarted, JobStatusFinished, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Job is one gallery entry. It is created optimistically the moment the
// backend accepts a submission and mutated in place as status arrives; there
// is no delete path.
type Job struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Format       valueobjects.OutputFormat `json:"format"`
	Status       JobStatus                 `json:"status"`
	Progress     int                       `json:"progress"`
	CurrentStep  string                    `json:"currentStep,omitempty"`
	DownloadURL  string                    `json:"downloadUrl,omitempty"`
	ThumbnailURL string                    `json:"thumbnailUrl,omitempty"`
	Duration     float64                   `json:"duration,omitempty"`
	FileSize     int64                     `json:"fileSize,omitempty"`
	Error        string                    `json:"error,omitempty"`
	CreatedAt    time.Time                 `json:"createdAt"`
	LastUpdated  time.Time                 `json:"lastUpdated"`
}

// NewJob creates the optimistic gallery entry for an accepted submission
func NewJob(id, title string, format valueobjects.OutputFormat) (*Job, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("job id cannot be empty")
	}
	if !format.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown output format: " + string(format))
	}
	now := time.Now()
	return &Job{
		ID:          id,
		Title:       title,
		Format:      format,
		Status:      JobStatusQueued,
		CreatedAt:   now,
		LastUpdated: now,
	}, nil
}

// StatusUpdate is one observation of remote job state, from either the push
// or the poll channel. ReceivedAt is local arrival time, which is what the
// last-write-wins rule keys on; both channels report the same monotonically
// advancing remote state, so channel identity is irrelevant.
type StatusUpdate struct {
	Status       JobStatus
	Progress     int
	CurrentStep  string
	DownloadURL  string
	ThumbnailURL string
	Duration     float64
	FileSize     int64
	Error        string
	ReceivedAt   time.Time
}

// Apply merges a status update into the job if it is not older than the last
// applied one. Applying the same update twice is a no-op; optional fields
// never erase previously learned values. Returns true when the job changed.
func (j *Job) Apply(update StatusUpdate) bool {
	if update.ReceivedAt.Before(j.LastUpdated) {
		return false
	}
	if !update.Status.IsValid() {
		return false
	}

	changed := j.Status != update.Status || j.Progress != update.Progress
	j.Status = update.Status
	j.Progress = update.Progress

	if update.CurrentStep != "" && update.CurrentStep != j.CurrentStep {
		j.CurrentStep = update.CurrentStep
		changed = true
	}
	if update.DownloadURL != "" && update.DownloadURL != j.DownloadURL {
		j.DownloadURL = update.DownloadURL
		changed = true
	}
	if update.ThumbnailURL != "" && update.ThumbnailURL != j.ThumbnailURL {
		j.ThumbnailURL = update.ThumbnailURL
		changed = true
	}
	if update.Duration > 0 && update.Duration != j.Duration {
		j.Duration = update.Duration
		changed = true
	}
	if update.FileSize > 0 && update.FileSize != j.FileSize {
		j.FileSize = update.FileSize
		changed = true
	}
	if update.Error != "" && update.Error != j.Error {
		j.Error = update.Error
		changed = true
	}

	if changed {
		j.LastUpdated = update.ReceivedAt
	}
	return changed
}

// Fail marks the job terminally failed with a human-readable message
func (j *Job) Fail(message string) {
	j.Status = JobStatusFailed
	j.Error = message
	j.LastUpdated = time.Now()
}
