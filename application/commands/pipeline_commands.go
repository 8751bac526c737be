// Package commands defines the write-side operations of the application layer.
package commands

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// AddNodeCommand places a new component node on the canvas.
type AddNodeCommand struct {
	UserID      string  `validate:"required"`
	NodeType    string  `validate:"required"`
	X           float64 `validate:""`
	Y           float64 `validate:""`
	Title       string  `validate:"required,max=200"`
	Description string  `validate:"max=1000"`
}

// Validate implements bus.Command
func (c AddNodeCommand) Validate() error {
	return validate.Struct(c)
}

// MoveNodeCommand records the final position of a node after a drag.
type MoveNodeCommand struct {
	UserID string  `validate:"required"`
	NodeID string  `validate:"required"`
	X      float64 `validate:""`
	Y      float64 `validate:""`
}

// Validate implements bus.Command
func (c MoveNodeCommand) Validate() error {
	return validate.Struct(c)
}

// DeleteNodeCommand removes a node and cascades its connections.
type DeleteNodeCommand struct {
	UserID string `validate:"required"`
	NodeID string `validate:"required"`
}

// Validate implements bus.Command
func (c DeleteNodeCommand) Validate() error {
	return validate.Struct(c)
}

// AddConnectionCommand links a component node into the prompt node.
type AddConnectionCommand struct {
	UserID       string `validate:"required"`
	SourceID     string `validate:"required"`
	TargetID     string `validate:"required"`
	SourceHandle string `validate:"max=100"`
	TargetHandle string `validate:"max=100"`
}

// Validate implements bus.Command
func (c AddConnectionCommand) Validate() error {
	return validate.Struct(c)
}

// DeleteConnectionCommand removes a single connection by id.
type DeleteConnectionCommand struct {
	UserID       string `validate:"required"`
	ConnectionID string `validate:"required"`
}

// Validate implements bus.Command
func (c DeleteConnectionCommand) Validate() error {
	return validate.Struct(c)
}

// UpdatePayloadCommand replaces the stored configuration for one component
// kind. Payload carries the kind-specific JSON document; it is decoded by
// the handler against the kind's payload type.
type UpdatePayloadCommand struct {
	UserID  string          `validate:"required"`
	Kind    string          `validate:"required"`
	Payload json.RawMessage `validate:"required"`
}

// Validate implements bus.Command
func (c UpdatePayloadCommand) Validate() error {
	return validate.Struct(c)
}

// ClearPayloadCommand removes the stored configuration for one component kind.
type ClearPayloadCommand struct {
	UserID string `validate:"required"`
	Kind   string `validate:"required"`
}

// Validate implements bus.Command
func (c ClearPayloadCommand) Validate() error {
	return validate.Struct(c)
}

// SetCustomPromptCommand stores the free-form instruction text appended to
// the assembled prompt.
type SetCustomPromptCommand struct {
	UserID string `validate:"required"`
	Text   string `validate:"max=10000"`
}

// Validate implements bus.Command
func (c SetCustomPromptCommand) Validate() error {
	return validate.Struct(c)
}

// ResetPipelineCommand discards the user's pipeline and recreates the
// default single-prompt canvas.
type ResetPipelineCommand struct {
	UserID string `validate:"required"`
}

// Validate implements bus.Command
func (c ResetPipelineCommand) Validate() error {
	return validate.Struct(c)
}
