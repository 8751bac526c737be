package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/domain/gallery"
	"careflow-backend/infrastructure/persistence/memory"
)

func galleryJob(t *testing.T, id string, createdAt time.Time) *gallery.Job {
	t.Helper()
	job, err := gallery.NewJob(id, "Job "+id, valueobjects.OutputFormatVideo)
	require.NoError(t, err)
	job.CreatedAt = createdAt
	return job
}

func TestGalleryRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewGalleryRepository(memory.NewKVStore(), zap.NewNop())

	job := galleryJob(t, "job-1", time.Now())
	require.NoError(t, repo.Upsert(ctx, "user123", job))

	got, err := repo.Get(ctx, "user123", "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Job job-1", got.Title)

	missing, err := repo.Get(ctx, "user123", "job-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGalleryRepository_UpsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewGalleryRepository(memory.NewKVStore(), zap.NewNop())

	job := galleryJob(t, "job-1", time.Now())
	require.NoError(t, repo.Upsert(ctx, "user123", job))

	job.Progress = 80
	job.Status = gallery.JobStatusStarted
	require.NoError(t, repo.Upsert(ctx, "user123", job))

	jobs, err := repo.List(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 80, jobs[0].Progress)
}

func TestGalleryRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewGalleryRepository(memory.NewKVStore(), zap.NewNop())

	base := time.Now()
	require.NoError(t, repo.Upsert(ctx, "user123", galleryJob(t, "oldest", base.Add(-2*time.Hour))))
	require.NoError(t, repo.Upsert(ctx, "user123", galleryJob(t, "newest", base)))
	require.NoError(t, repo.Upsert(ctx, "user123", galleryJob(t, "middle", base.Add(-time.Hour))))

	jobs, err := repo.List(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "newest", jobs[0].ID)
	assert.Equal(t, "middle", jobs[1].ID)
	assert.Equal(t, "oldest", jobs[2].ID)
}

func TestGalleryRepository_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewGalleryRepository(memory.NewKVStore(), zap.NewNop())

	require.NoError(t, repo.Upsert(ctx, "alice", galleryJob(t, "job-1", time.Now())))

	jobs, err := repo.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGalleryRepository_CorruptDocumentStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	repo := NewGalleryRepository(store, zap.NewNop())

	require.NoError(t, store.Set(ctx, userKey("user123", keyGallery), []byte("][")))

	jobs, err := repo.List(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, jobs)

	// The store is writable again after the fallback
	require.NoError(t, repo.Upsert(ctx, "user123", galleryJob(t, "job-1", time.Now())))
	jobs, err = repo.List(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestGalleryRepository_ConcurrentUpsertsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewGalleryRepository(memory.NewKVStore(), zap.NewNop())

	const n = 20
	base := time.Now()
	jobs := make([]*gallery.Job, n)
	for i := range jobs {
		jobs[i] = galleryJob(t, "job-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *gallery.Job) {
			defer wg.Done()
			_ = repo.Upsert(ctx, "user123", job)
		}(job)
	}
	wg.Wait()

	jobs, err := repo.List(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, jobs, n)
}
