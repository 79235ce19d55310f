// Package core provides the input record, the session configuration and the
// terminal drawing primitives shared by the simulation and the platform layer.
// It contains no Bubble Tea dependency to keep simulation code pure and
// testable.
package core

import (
	"math"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// Rect represents an axis-aligned area of screen cells.
type Rect struct {
	X, Y int // Top-left corner position
	W, H int // Width and height
}

// NewRect creates a new rectangle with the given position and dimensions.
func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Right returns the x-coordinate of the right edge.
func (r Rect) Right() int {
	return r.X + r.W
}

// Bottom returns the y-coordinate of the bottom edge.
func (r Rect) Bottom() int {
	return r.Y + r.H
}

// DefaultUnitsPerCell is the scale used before a frame is available to fit.
var DefaultUnitsPerCell = maths.FromInt(4)

// Viewport maps world coordinates (y up) onto screen cells (y down).
// Terminal cells are roughly twice as tall as they are wide, so one cell
// covers twice as many world units vertically as horizontally.
type Viewport struct {
	ScreenW, ScreenH int
	Origin           maths.Vector2 // world point drawn at the screen center
	UnitsPerCell     maths.Number  // world units per horizontal cell
}

// NewViewport centers the world origin on a screen of the given size.
func NewViewport(w, h int, unitsPerCell maths.Number) Viewport {
	if unitsPerCell.Sign() <= 0 {
		unitsPerCell = maths.One
	}
	return Viewport{ScreenW: w, ScreenH: h, UnitsPerCell: unitsPerCell}
}

// ToScreen converts a world point into a cell position. Results may lie
// outside the screen; Screen.Set clips them.
func (v Viewport) ToScreen(p maths.Vector2) (int, int) {
	upc := v.UnitsPerCell.Float64()
	dx := p.X.Sub(v.Origin.X).Float64() / upc
	dy := p.Y.Sub(v.Origin.Y).Float64() / (upc * 2)
	return v.ScreenW/2 + int(math.Floor(dx)), v.ScreenH/2 - int(math.Floor(dy))
}

// Cells converts a world-space length along x into a cell count.
func (v Viewport) Cells(length maths.Number) int {
	return int(math.Round(length.Float64() / v.UnitsPerCell.Float64()))
}

