package valueobjects

import "math"

// Position is a value object for a node's location on the canvas.
// Coordinates are canvas-space pixels; the widget owns the coordinate system.
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position value object
func NewPosition(x, y float64) Position {
	return Position{x: x, y: y}
}

// X returns the horizontal coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the vertical coordinate
func (p Position) Y() float64 {
	return p.y
}

// Equals checks positional equality within half a pixel, which is the
// finest granularity the canvas widget reports after a drag settles.
func (p Position) Equals(other Position) bool {
	return math.Abs(p.x-other.x) < 0.5 && math.Abs(p.y-other.y) < 0.5
}

// Translate returns a new position offset by dx, dy
func (p Position) Translate(dx, dy float64) Position {
	return Position{x: p.x + dx, y: p.y + dy}
}
