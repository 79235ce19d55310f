// Package platformer implements a game of kinematic players in an arena of
// static walls with a few dynamic crates falling under gravity. All motion
// goes through the physics stage.
package platformer

import (
	"fmt"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/engine"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/physics"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

const (
	gameID    = "platformer"
	gameTitle = "Platformer"
)

// Arena layout, in world units.
const (
	floorY      = -40
	wallPad     = 80
	wallThick   = 4
	wallHeight  = 80
	crateRadius = 4
	crateY      = 30
)

// Game sets up the platformer.
type Game struct{}

// New creates a new platformer game.
func New() *Game {
	return &Game{}
}

func init() {
	registry.Register(gameID, func() registry.Game {
		return New()
	})
}

// ID returns the game identifier.
func (g *Game) ID() string { return gameID }

// Title returns the display name.
func (g *Game) Title() string { return gameTitle }

// Setup spawns the players, the arena and the crates.
func (g *Game) Setup(e *engine.Engine, cfg config.EngineConfig) error {
	pc := cfg.Games.Platformer
	if pc.Speed.Sign() < 0 {
		return fmt.Errorf("platformer: speed must not be negative, got %s", pc.Speed)
	}
	s := e.Stores()
	w := e.World()

	body := physics.Collider{Shape: physics.ShapeCuboid, Size: pc.PlayerSize, Layer: pc.Layer, LayerMask: pc.LayerMask}
	for p := 0; p < e.Players(); p++ {
		ent := w.Spawn()
		s.Transforms.Set(ent, transform.At(maths.V2(int32(p)*pc.Spacing, 0)))
		s.Colliders.Set(ent, body)
		s.Kinematic.Set(ent, physics.KinematicBody{})
		s.Players.Set(ent, engine.Player{Handle: p})
	}

	// Players span [0, right] on x.
	right := int32(max(e.Players()-1, 0)) * pc.Spacing
	if pc.Arena {
		wall := func(x, y, hx, hy int32) {
			ent := w.Spawn()
			s.Transforms.Set(ent, transform.At(maths.V2(x, y)))
			s.Colliders.Set(ent, physics.Collider{Shape: physics.ShapeCuboid, Size: maths.V2(hx, hy), Layer: pc.Layer, LayerMask: pc.LayerMask})
			s.Static.Set(ent, physics.StaticBody{})
		}
		mid := right / 2
		half := right/2 + wallPad
		wall(mid, floorY, half+wallThick, wallThick)
		wall(mid-half, floorY+wallHeight, wallThick, wallHeight)
		wall(mid+half, floorY+wallHeight, wallThick, wallHeight)
	}

	for i := 0; i < pc.Crates; i++ {
		ent := w.Spawn()
		x := -wallPad/2 + int32(i)*(right+wallPad)/int32(max(pc.Crates-1, 1))
		s.Transforms.Set(ent, transform.At(maths.V2(x, crateY)))
		s.Colliders.Set(ent, physics.Collider{Shape: physics.ShapeBall, Size: maths.V2(crateRadius, crateRadius), Layer: pc.Layer, LayerMask: pc.LayerMask})
		s.Dynamic.Set(ent, physics.DynamicBody{GravityScale: maths.FromInt(8)})
	}

	speed := pc.Speed
	e.Schedule().Add(engine.StageGameplay, "steer", func(ctx *engine.Context) error {
		ecs.Each2(ctx.Stores.Players, ctx.Stores.Kinematic, func(_ ecs.Entity, p *engine.Player, kb *physics.KinematicBody) {
			x, y := ctx.Input(p.Handle).Axis()
			kb.Velocity = maths.NewVector2(speed.MulInt(int64(x)), speed.MulInt(int64(y)))
		})
		return nil
	})
	return nil
}
