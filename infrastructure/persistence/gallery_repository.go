package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/gallery"
	pkgerrors "careflow-backend/pkg/errors"
)

// GalleryRepository persists the job history as one JSON document per user.
// Upsert serializes per user through a mutex: the submission path and the
// progress path both read-modify-write the same key, and without the guard
// an overlapping pair could drop one record.
type GalleryRepository struct {
	store  ports.KeyValueStore
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGalleryRepository creates the repository over a key-value store
func NewGalleryRepository(store ports.KeyValueStore, logger *zap.Logger) *GalleryRepository {
	return &GalleryRepository{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (r *GalleryRepository) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

// List implements ports.GalleryRepository
func (r *GalleryRepository) List(ctx context.Context, userID string) ([]*gallery.Job, error) {
	jobs, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Get implements ports.GalleryRepository. A missing job returns nil, nil.
func (r *GalleryRepository) Get(ctx context.Context, userID, jobID string) (*gallery.Job, error) {
	jobs, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.ID == jobID {
			return job, nil
		}
	}
	return nil, nil
}

// Upsert implements ports.GalleryRepository
func (r *GalleryRepository) Upsert(ctx context.Context, userID string, job *gallery.Job) error {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	jobs, err := r.load(ctx, userID)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range jobs {
		if existing.ID == job.ID {
			jobs[i] = job
			replaced = true
			break
		}
	}
	if !replaced {
		jobs = append(jobs, job)
	}

	data, err := json.Marshal(jobs)
	if err != nil {
		return pkgerrors.NewStorageError("failed to encode gallery", err)
	}
	return r.store.Set(ctx, userKey(userID, keyGallery), data)
}

// load reads the gallery document, falling back to empty on corruption
func (r *GalleryRepository) load(ctx context.Context, userID string) ([]*gallery.Job, error) {
	data, found, err := r.store.Get(ctx, userKey(userID, keyGallery))
	if err != nil {
		return nil, err
	}
	if !found {
		return []*gallery.Job{}, nil
	}

	var jobs []*gallery.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		r.logger.Warn("stored gallery is corrupt, starting empty",
			zap.String("user_id", userID),
			zap.Error(err))
		return []*gallery.Job{}, nil
	}
	return jobs, nil
}
