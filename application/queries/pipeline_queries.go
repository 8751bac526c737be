// Package queries defines the read-side operations and their view models.
package queries

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GetPipelineQuery fetches the user's full pipeline view
type GetPipelineQuery struct {
	UserID string `validate:"required"`
}

// Validate implements bus.Query
func (q GetPipelineQuery) Validate() error {
	return validate.Struct(q)
}

// GetPromptQuery fetches just the assembled prompt text
type GetPromptQuery struct {
	UserID string `validate:"required"`
}

// Validate implements bus.Query
func (q GetPromptQuery) Validate() error {
	return validate.Struct(q)
}

// ListGalleryQuery fetches the user's generation-job history
type ListGalleryQuery struct {
	UserID string `validate:"required"`
}

// Validate implements bus.Query
func (q ListGalleryQuery) Validate() error {
	return validate.Struct(q)
}

// GetJobQuery fetches a single gallery job
type GetJobQuery struct {
	UserID string `validate:"required"`
	JobID  string `validate:"required"`
}

// Validate implements bus.Query
func (q GetJobQuery) Validate() error {
	return validate.Struct(q)
}
