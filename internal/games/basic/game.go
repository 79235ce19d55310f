// Package basic implements the simplest rollback game: each player is a
// square moved by input, integrated straight into its transform without any
// physics body.
package basic

import (
	"fmt"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/engine"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

const (
	gameID    = "basic"
	gameTitle = "Basic"
)

// Velocity is the per-tick displacement of a player.
type Velocity struct {
	V maths.Vector2 `msgpack:"v"`
}

// Game sets up the basic game.
type Game struct{}

// New creates a new basic game.
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

// Setup spawns one entity per player and adds the movement systems.
func (g *Game) Setup(e *engine.Engine, cfg config.EngineConfig) error {
	bc := cfg.Games.Basic
	if bc.Step.Sign() < 0 {
		return fmt.Errorf("basic: step must not be negative, got %s", bc.Step)
	}
	velocities, err := ecs.Register[Velocity](e.World(), "basic_velocity")
	if err != nil {
		return err
	}

	s := e.Stores()
	for p := 0; p < e.Players(); p++ {
		ent := e.World().Spawn()
		s.Transforms.Set(ent, transform.At(maths.V2(int32(p)*bc.Spacing, 0)))
		s.Players.Set(ent, engine.Player{Handle: p})
		velocities.Set(ent, Velocity{})
	}

	step := bc.Step
	e.Schedule().Add(engine.StageGameplay, "read_input", func(ctx *engine.Context) error {
		ecs.Each2(ctx.Stores.Players, velocities, func(_ ecs.Entity, p *engine.Player, v *Velocity) {
			x, y := ctx.Input(p.Handle).Axis()
			v.V = maths.NewVector2(step.MulInt(int64(x)), step.MulInt(int64(y)))
		})
		return nil
	})
	e.Schedule().Add(engine.StageGameplay, "move", func(ctx *engine.Context) error {
		ecs.Each2(velocities, ctx.Stores.Transforms, func(_ ecs.Entity, v *Velocity, t *transform.Transform2) {
			*t = t.Translate(v.V)
		})
		return nil
	})
	return nil
}
