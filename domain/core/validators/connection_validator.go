package validators

import (
	"errors"

	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/valueobjects"
)

// Connection gesture rejections. These are deliberately plain sentinel
// errors: an invalid gesture is a silent no-op at the UI, so callers only
// ever branch on them, never surface them.
var (
	ErrSelfConnection      = errors.New("connection source and target are the same node")
	ErrUnknownEndpoint     = errors.New("connection references a node that does not exist")
	ErrTargetNotPrompt     = errors.New("connections must terminate at the prompt node")
	ErrSourceIsPrompt      = errors.New("the prompt node cannot be a connection source")
	ErrDuplicateConnection = errors.New("a connection between these nodes already exists")
)

// ConnectionValidator checks the star-topology rules for connect gestures.
// The canvas widget consults it before drawing an edge, and the aggregate
// re-runs the same checks on commit, because the widget is untrusted.
type ConnectionValidator struct{}

// NewConnectionValidator creates a validator with the standard rules
func NewConnectionValidator() *ConnectionValidator {
	return &ConnectionValidator{}
}

// Candidate is a connect gesture as reported by the canvas widget
type Candidate struct {
	SourceID     valueobjects.NodeID
	TargetID     valueobjects.NodeID
	SourceHandle string
	TargetHandle string
}

// Validate returns nil when the candidate may become a connection, or one of
// the sentinel rejection errors above.
func (v *ConnectionValidator) Validate(
	candidate Candidate,
	nodes map[valueobjects.NodeID]*entities.Node,
	existing []*entities.Connection,
) error {
	if candidate.SourceID.Equals(candidate.TargetID) {
		return ErrSelfConnection
	}

	source, sourceExists := nodes[candidate.SourceID]
	target, targetExists := nodes[candidate.TargetID]
	if !sourceExists || !targetExists {
		return ErrUnknownEndpoint
	}

	if source.IsPrompt() {
		return ErrSourceIsPrompt
	}
	if !target.IsPrompt() {
		return ErrTargetNotPrompt
	}

	// One connection per (source, target) pair, regardless of handles
	for _, conn := range existing {
		if conn.SourceID.Equals(candidate.SourceID) && conn.TargetID.Equals(candidate.TargetID) {
			return ErrDuplicateConnection
		}
	}

	return nil
}

// IsRejection reports whether err is one of the silent gesture rejections,
// as opposed to a real failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSelfConnection) ||
		errors.Is(err, ErrUnknownEndpoint) ||
		errors.Is(err, ErrTargetNotPrompt) ||
		errors.Is(err, ErrSourceIsPrompt) ||
		errors.Is(err, ErrDuplicateConnection)
}
