package gallery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow-backend/domain/core/valueobjects"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob("job-1", "Morning routine", valueobjects.OutputFormatVideo)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Zero(t, job.Progress)
	assert.False(t, job.Status.Terminal())

	_, err = NewJob("", "x", valueobjects.OutputFormatVideo)
	assert.Error(t, err)

	_, err = NewJob("job-2", "x", valueobjects.OutputFormat("podcast"))
	assert.Error(t, err)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusStarted.Terminal())
	assert.True(t, JobStatusFinished.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJob_Apply_Advances(t *testing.T) {
	job, err := NewJob("job-1", "x", valueobjects.OutputFormatVideo)
	require.NoError(t, err)

	changed := job.Apply(StatusUpdate{
		Status:      JobStatusStarted,
		Progress:    40,
		CurrentStep: "rendering",
		ReceivedAt:  time.Now(),
	})
	assert.True(t, changed)
	assert.Equal(t, JobStatusStarted, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, "rendering", job.CurrentStep)
}

func TestJob_Apply_RejectsOlderUpdate(t *testing.T) {
	job, err := NewJob("job-1", "x", valueobjects.OutputFormatVideo)
	require.NoError(t, err)

	now := time.Now()
	require.True(t, job.Apply(StatusUpdate{Status: JobStatusStarted, Progress: 60, ReceivedAt: now}))

	// An update that arrived before the last applied one must lose the race
	changed := job.Apply(StatusUpdate{
		Status:     JobStatusQueued,
		Progress:   10,
		ReceivedAt: now.Add(-time.Second),
	})
	assert.False(t, changed)
	assert.Equal(t, JobStatusStarted, job.Status)
	assert.Equal(t, 60, job.Progress)
}

func TestJob_Apply_SameUpdateTwiceIsNoOp(t *testing.T) {
	job, err := NewJob("job-1", "x", valueobjects.OutputFormatVideo)
	require.NoError(t, err)

	update := StatusUpdate{
		Status:      JobStatusStarted,
		Progress:    25,
		CurrentStep: "scripting",
		ReceivedAt:  time.Now(),
	}
	assert.True(t, job.Apply(update))
	assert.False(t, job.Apply(update))
}

func TestJob_Apply_OptionalFieldsNeverErased(t *testing.T) {
	job, err := NewJob("job-1", "x", valueobjects.OutputFormatVideo)
	require.NoError(t, err)

	now := time.Now()
	require.True(t, job.Apply(StatusUpdate{
		Status:       JobStatusFinished,
		Progress:     100,
		DownloadURL:  "https://cdn.example.com/job-1.mp4",
		ThumbnailURL: "https://cdn.example.com/job-1.jpg",
		Duration:     92.5,
		FileSize:     1 << 20,
		ReceivedAt:   now,
	}))

	// A later sparse observation keeps the learned fields
	job.Apply(StatusUpdate{
		Status:     JobStatusFinished,
		Progress:   100,
		ReceivedAt: now.Add(time.Second),
	})
	assert.Equal(t, "https://cdn.example.com/job-1.mp4", job.DownloadURL)
	assert.Equal(t, "https://cdn.example.com/job-1.jpg", job.ThumbnailURL)
	assert.Equal(t, 92.5, job.Duration)
	assert.Equal(t, int64(1<<20), job.FileSize)
}

func TestJob_Apply_RejectsUnknownStatus(t *testing.T) {
	job, err := NewJob("job-1", "x", valueobjects.OutputFormatVideo)
	require.NoError(t, err)

	changed := job.Apply(StatusUpdate{Status: JobStatus("exploded"), ReceivedAt: time.Now()})
	assert.False(t, changed)
	assert.Equal(t, JobStatusQueued, job.Status)
}

func TestJob_Fail(t *testing.T) {
	job, err := NewJob("job-1", "x", valueobjects.OutputFormatVideo)
	require.NoError(t, err)

	job.Fail("Failed to check generation status")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "Failed to check generation status", job.Error)
	assert.True(t, job.Status.Terminal())
}
