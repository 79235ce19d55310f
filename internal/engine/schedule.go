package engine

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/physics"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

// Stage is one of the three fixed phases of a tick.
type Stage uint8

const (
	StageGameplay Stage = iota
	StagePhysics
	StageSync
	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageGameplay:
		return "gameplay"
	case StagePhysics:
		return "physics"
	case StageSync:
		return "sync"
	default:
		return fmt.Sprintf("stage(%d)", s)
	}
}

// ErrStageAccess is returned when a system asks for state its stage may not
// touch, such as the physics world outside the physics stage.
var ErrStageAccess = errors.New("engine: state not accessible from this stage")

// System is one unit of per-tick work. Returning an error aborts the tick.
type System func(ctx *Context) error

type entry struct {
	name string
	run  System
}

// Schedule is the ordered list of systems of every stage. It is built once
// during setup; stages always run gameplay, physics, sync.
type Schedule struct {
	stages [stageCount][]entry
}

// NewSchedule creates an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// Add appends sys to stage. Systems of a stage run in the order they were
// added.
func (s *Schedule) Add(stage Stage, name string, sys System) {
	if stage >= stageCount {
		panic(fmt.Sprintf("engine: unknown stage %d", stage))
	}
	s.stages[stage] = append(s.stages[stage], entry{name: name, run: sys})
}

// Systems lists the system names of stage in run order.
func (s *Schedule) Systems(stage Stage) []string {
	if stage >= stageCount {
		return nil
	}
	names := make([]string, len(s.stages[stage]))
	for i, e := range s.stages[stage] {
		names[i] = e.name
	}
	return names
}

func (s *Schedule) run(ctx *Context) error {
	for st := StageGameplay; st < stageCount; st++ {
		if err := s.runStage(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schedule) runStage(ctx *Context, st Stage) error {
	ctx.stage = st
	for _, e := range s.stages[st] {
		if err := e.run(ctx); err != nil {
			return fmt.Errorf("engine: tick %d: %s system %q: %w", ctx.Tick, st, e.name, err)
		}
	}
	return nil
}

// Context is passed to every system of a tick. It replaces global resource
// lookup: everything a system may use is reachable from here.
type Context struct {
	Tick   int64
	Inputs []core.PlayerInput
	World  *ecs.World
	Stores *Stores
	Log    *log.Logger

	stage   Stage
	physics *physics.World
	shapes  []physics.DebugShape
	frame   *transform.Frame
	workers int
}

// Stage returns the stage currently running.
func (c *Context) Stage() Stage {
	return c.stage
}

// Input returns the input record of player for this tick, or an empty
// record for an unknown player.
func (c *Context) Input(player int) core.InputRecord {
	if player < 0 || player >= len(c.Inputs) {
		return 0
	}
	return c.Inputs[player].Record
}

// Physics returns the physics world. Only physics stage systems may use it.
func (c *Context) Physics() (*physics.World, error) {
	if c.stage != StagePhysics {
		return nil, fmt.Errorf("%w: physics world from %s stage", ErrStageAccess, c.stage)
	}
	return c.physics, nil
}

// Frame returns the presentation frame being built. Only sync stage systems
// may use it.
func (c *Context) Frame() (*transform.Frame, error) {
	if c.stage != StageSync {
		return nil, fmt.Errorf("%w: presentation frame from %s stage", ErrStageAccess, c.stage)
	}
	return c.frame, nil
}
