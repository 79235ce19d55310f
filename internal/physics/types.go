// Package physics is the deterministic 2D physics world stepped once per
// simulation tick. Every quantity is fixed point and every loop runs in body
// handle order, so the same world stepped with the same inputs produces the
// same bytes on every peer.
package physics

import (
	"fmt"

	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// BodyKind selects how a body moves.
type BodyKind uint8

const (
	// Static bodies never move.
	Static BodyKind = iota
	// Kinematic bodies move with the velocity gameplay gives them and stop
	// at colliders in their way. Gravity does not act on them.
	Kinematic
	// Dynamic bodies are like kinematic ones but also accelerate with
	// gravity.
	Dynamic
)

func (k BodyKind) String() string {
	switch k {
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("BodyKind(%d)", k)
	}
}

// ShapeKind tags the collider geometry.
type ShapeKind uint8

const (
	// ShapeCuboid is an axis-aligned box; Size holds its half extents.
	ShapeCuboid ShapeKind = iota
	// ShapeBall is a circle; Size.X holds its radius.
	ShapeBall
)

func (s ShapeKind) String() string {
	switch s {
	case ShapeCuboid:
		return "cuboid"
	case ShapeBall:
		return "ball"
	default:
		return fmt.Sprintf("ShapeKind(%d)", s)
	}
}

// Collider describes collision participation of an entity.
type Collider struct {
	Shape     ShapeKind     `msgpack:"shape"`
	Size      maths.Vector2 `msgpack:"size"`
	Layer     uint32        `msgpack:"layer"`
	LayerMask uint32        `msgpack:"mask"`
}

// Interacts reports whether two colliders may touch: each must belong to a
// layer the other one accepts.
func (c Collider) Interacts(o Collider) bool {
	return c.Layer&o.LayerMask != 0 && o.Layer&c.LayerMask != 0
}

// HalfExtents returns the half size of the collider bounding box.
func (c Collider) HalfExtents() maths.Vector2 {
	switch c.Shape {
	case ShapeBall:
		return maths.NewVector2(c.Size.X, c.Size.X)
	case ShapeCuboid:
		return c.Size
	default:
		panic(fmt.Sprintf("physics: unknown shape %d", c.Shape))
	}
}

// Surface records which sides of a body were blocked during the last step.
// Floor is below (negative y), ceiling above.
type Surface struct {
	OnWall    bool `msgpack:"wall"`
	OnFloor   bool `msgpack:"floor"`
	OnCeiling bool `msgpack:"ceiling"`
}

// KinematicBody is the gameplay-facing component of a kinematic body.
// Velocity is in world units per second. The surface flags are written back
// by the physics stage.
type KinematicBody struct {
	Velocity maths.Vector2 `msgpack:"vel"`
	Surface  Surface       `msgpack:"surface"`
}

// StaticBody marks an entity whose collider never moves.
type StaticBody struct{}

// DynamicBody is a body affected by gravity.
type DynamicBody struct {
	Velocity     maths.Vector2 `msgpack:"vel"`
	GravityScale maths.Number  `msgpack:"gscale"`
	Surface      Surface       `msgpack:"surface"`
}

// Handle links an entity to its body. The zero value means the entity has
// not been registered yet.
type Handle struct {
	Body BodyHandle `msgpack:"body"`
}

// BodyHandle identifies a body slot. The generation detects stale handles
// after a slot is reused.
type BodyHandle struct {
	Index      uint32 `msgpack:"i"`
	Generation uint32 `msgpack:"g"`
}

// Valid reports whether h was ever issued. It does not check liveness.
func (h BodyHandle) Valid() bool {
	return h.Generation != 0
}

func (h BodyHandle) String() string {
	return fmt.Sprintf("%d/%d", h.Index, h.Generation)
}

// Binding ties an entity to the body registered for it.
type Binding struct {
	Entity ecs.Entity `msgpack:"e"`
	Handle BodyHandle `msgpack:"h"`
}

// IntegrationParams controls how a single step advances the world.
type IntegrationParams struct {
	// TicksPerSecond converts per-second velocities into per-step motion.
	TicksPerSecond int64 `yaml:"ticks_per_second" msgpack:"tps"`
	// MaxSubsteps bounds the continuous collision substeps of one body.
	// Every substep is swept along its whole path, so the cap only changes
	// how finely x and y motion interleave, never whether a body tunnels.
	MaxSubsteps int `yaml:"max_substeps" msgpack:"substeps"`
	// SleepTicks is how long an island must be at rest before it sleeps.
	// Zero disables sleeping.
	SleepTicks int `yaml:"sleep_ticks" msgpack:"sleep"`
	// GridCell is the cell size of the query acceleration grid.
	GridCell maths.Number `yaml:"grid_cell" msgpack:"cell"`
}

// DefaultParams returns parameters for a 60 Hz simulation.
func DefaultParams() IntegrationParams {
	return IntegrationParams{
		TicksPerSecond: 60,
		MaxSubsteps:    8,
		SleepTicks:     30,
		GridCell:       maths.FromInt(32),
	}
}

// DefaultGravity points down at 9.81 units per second squared.
func DefaultGravity() maths.Vector2 {
	return maths.NewVector2(maths.Zero, maths.MustParse("-9.81"))
}

// Contact is a touching or overlapping pair found by the narrow phase.
// Normal points from A to B; Depth is zero for bodies exactly touching.
type Contact struct {
	A      BodyHandle    `msgpack:"a"`
	B      BodyHandle    `msgpack:"b"`
	Normal maths.Vector2 `msgpack:"n"`
	Depth  maths.Number  `msgpack:"d"`
}

// Pair is a broad phase candidate, A.Index < B.Index.
type Pair struct {
	A BodyHandle `msgpack:"a"`
	B BodyHandle `msgpack:"b"`
}

// Joint keeps body B at a fixed offset from body A.
type Joint struct {
	A      BodyHandle    `msgpack:"a"`
	B      BodyHandle    `msgpack:"b"`
	Offset maths.Vector2 `msgpack:"off"`
}

// DebugShape is a collider outline for visualisation.
type DebugShape struct {
	Entity      ecs.Entity
	Shape       ShapeKind
	Center      maths.Vector2
	HalfExtents maths.Vector2
	Sleeping    bool
}
