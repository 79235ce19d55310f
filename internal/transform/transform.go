// Package transform holds the authoritative simulation transform and the
// presentation copies handed to the renderer.
package transform

import (
	"fmt"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// Transform2 is the authoritative 2D placement of an entity. The zero value
// places the entity at the origin with zero scale and rotation.
type Transform2 struct {
	Pos      maths.Vector2 `msgpack:"pos"`
	Scale    maths.Vector2 `msgpack:"scale"`
	Rotation maths.Number  `msgpack:"rot"`
}

// At returns a transform at p with unit scale.
func At(p maths.Vector2) Transform2 {
	return Transform2{Pos: p, Scale: maths.NewVector2(maths.One, maths.One)}
}

// Translate returns t moved by d.
func (t Transform2) Translate(d maths.Vector2) Transform2 {
	t.Pos = t.Pos.Add(d)
	return t
}

func (t Transform2) String() string {
	return fmt.Sprintf("pos=%s scale=%s rot=%s", t.Pos, t.Scale, t.Rotation)
}

// Pose is the presentation-only copy of a Transform2. It uses floating
// point and must never flow back into the simulation.
type Pose struct {
	X, Y           float64
	ScaleX, ScaleY float64
	Rotation       float64
}

// ToPose converts an authoritative transform for rendering.
func ToPose(t Transform2) Pose {
	return Pose{
		X:        t.Pos.X.Float64(),
		Y:        t.Pos.Y.Float64(),
		ScaleX:   t.Scale.X.Float64(),
		ScaleY:   t.Scale.Y.Float64(),
		Rotation: t.Rotation.Float64(),
	}
}
