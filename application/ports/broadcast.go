package ports

import (
	"careflow-backend/application/queries"
	"careflow-backend/domain/gallery"
)

// Broadcaster pushes server-originated state to a user's connected clients.
// Sends are best-effort; a user with no open sockets is not an error.
type Broadcaster interface {
	// BroadcastPipeline pushes the full pipeline view after a mutation
	BroadcastPipeline(userID string, view *queries.PipelineView)

	// BroadcastJob pushes one gallery job after its record changed
	BroadcastJob(userID string, job *gallery.Job)
}
