package ports

import (
	"context"

	"careflow-backend/domain/core/valueobjects"
)

// GenerationRequest is a job submission to the generation backend
type GenerationRequest struct {
	Format       valueobjects.OutputFormat           `json:"format"`
	Prompt       string                              `json:"prompt"`
	Title        string                              `json:"title,omitempty"`
	EvidenceData *valueobjects.EvidencePayload       `json:"evidenceData,omitempty"`
	StyleData    *valueobjects.StylePayload          `json:"styleData,omitempty"`
	PersonalData *valueobjects.PersonalDataPayload   `json:"personalData,omitempty"`
	OutputConfig *valueobjects.OutputSelectorPayload `json:"outputConfig,omitempty"`
	Credentials  string                              `json:"credentials,omitempty"`
}

// GenerationStatus is the backend's view of a job, identical in shape
// whether it arrives from a status poll or as an unsolicited push message
type GenerationStatus struct {
	JobID        string  `json:"jobId"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	CurrentStep  string  `json:"currentStep,omitempty"`
	DownloadURL  string  `json:"downloadUrl,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	FileSize     int64   `json:"fileSize,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// GenerationClient is the HTTP surface of the generation backend
type GenerationClient interface {
	// Submit starts a generation job
	Submit(ctx context.Context, request GenerationRequest) (*GenerationStatus, error)

	// Status polls a job by id
	Status(ctx context.Context, jobID string) (*GenerationStatus, error)

	// Cancel asks the backend to cancel a job
	Cancel(ctx context.Context, jobID string) error
}

// StatusStream is one open push channel for a job. Updates closes when the
// remote end hangs up; Close tears the channel down from this side.
type StatusStream interface {
	// Updates yields unsolicited status messages as they arrive
	Updates() <-chan GenerationStatus

	// Close shuts the stream down
	Close() error
}

// PushDialer opens the generation backend's per-job push channel
type PushDialer interface {
	// Dial connects to the push endpoint for a job
	Dial(ctx context.Context, jobID string) (StatusStream, error)
}

// StyleAnalyzer is the style-analysis backend
type StyleAnalyzer interface {
	// Analyze turns a transcript or free-text description into a style descriptor
	Analyze(ctx context.Context, transcriptOrDescription string) (*valueobjects.StylePayload, error)
}

// TranscriptSegment is one ordered piece of a video transcript
type TranscriptSegment struct {
	Text            string  `json:"text"`
	OffsetSeconds   float64 `json:"offset"`
	DurationSeconds float64 `json:"duration"`
}

// Transcript is an ordered transcript for one video
type Transcript struct {
	VideoID  string              `json:"videoId"`
	Segments []TranscriptSegment `json:"segments"`
}

// VideoResult is one candidate from a video search
type VideoResult struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	Channel      string `json:"channel,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// TranscriptProvider fetches transcripts and searches videos. The bearer
// credential is taken from the request context, set by the auth middleware.
type TranscriptProvider interface {
	// Transcript fetches the transcript for a video id
	Transcript(ctx context.Context, videoID string) (*Transcript, error)

	// Search returns candidate videos for a free-text query
	Search(ctx context.Context, query string) ([]VideoResult, error)
}
