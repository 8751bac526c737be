package ports

import (
	"context"

	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/events"
	"careflow-backend/domain/gallery"
)

// KeyValueStore is the durable storage port: a flat namespace of string
// keys holding opaque JSON values, mirroring the client-storage contract the
// persistence layer was designed around. Implementations must make Get on a
// missing key return found=false, never an error.
type KeyValueStore interface {
	// Get reads a key; found is false when the key is absent
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set writes a key
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes a key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error
}

// PipelineRepository persists the canonical pipeline per user.
// Load must never fail on missing or corrupt saved state: each underlying
// key falls back to its empty default independently, so a bad save degrades
// to a fresh canvas instead of blocking startup.
type PipelineRepository interface {
	// Load reads the user's pipeline, or builds a fresh one
	Load(ctx context.Context, userID string) (*aggregates.Pipeline, error)

	// Save writes the full node list, connection list, payloads, and custom
	// prompt text under their storage keys
	Save(ctx context.Context, pipeline *aggregates.Pipeline) error
}

// GalleryRepository persists the user's generation-job history
type GalleryRepository interface {
	// List returns all gallery jobs, newest first
	List(ctx context.Context, userID string) ([]*gallery.Job, error)

	// Get returns one job by id
	Get(ctx context.Context, userID, jobID string) (*gallery.Job, error)

	// Upsert inserts or replaces a job record
	Upsert(ctx context.Context, userID string, job *gallery.Job) error
}

// EventPublisher delivers domain events to in-process listeners
type EventPublisher interface {
	// Publish delivers a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch delivers a batch of events in order
	PublishBatch(ctx context.Context, batch []events.DomainEvent) error
}

// EventHandler consumes published domain events
type EventHandler interface {
	HandleEvent(ctx context.Context, event events.DomainEvent)
}
