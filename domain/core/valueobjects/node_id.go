package valueobjects

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeID is a value object representing a unique node identifier.
// Canvas clients generate ids of the form "<kind>-<millis>" so a dropped
// component is addressable before the server ever sees it; server-generated
// ids fall back to UUIDs. Both forms are opaque strings here.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDForKind creates a NodeID in the canvas client's "<kind>-<millis>" scheme
func NewNodeIDForKind(kind string) NodeID {
	return NodeID{value: fmt.Sprintf("%s-%d", kind, time.Now().UnixMilli())}
}

// NewNodeIDFromString creates a NodeID from an existing string
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
