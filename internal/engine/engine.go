// Package engine runs the simulation one tick at a time. A tick executes the
// gameplay, physics and sync stages of a Schedule over an explicit Context;
// the whole rollback state can be saved, loaded and checksummed between
// ticks.
package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/physics"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

// Player marks an entity controlled by a player slot.
type Player struct {
	Handle int `msgpack:"handle"`
}

// Stores are the component stores every engine registers, in this order,
// before any game store.
type Stores struct {
	Transforms *ecs.Store[transform.Transform2]
	Colliders  *ecs.Store[physics.Collider]
	Kinematic  *ecs.Store[physics.KinematicBody]
	Static     *ecs.Store[physics.StaticBody]
	Dynamic    *ecs.Store[physics.DynamicBody]
	Handles    *ecs.Store[physics.Handle]
	Players    *ecs.Store[Player]
}

func registerStores(w *ecs.World) *Stores {
	return &Stores{
		Transforms: ecs.MustRegister[transform.Transform2](w, "transform"),
		Colliders:  ecs.MustRegister[physics.Collider](w, "collider"),
		Kinematic:  ecs.MustRegister[physics.KinematicBody](w, "kinematic_body"),
		Static:     ecs.MustRegister[physics.StaticBody](w, "static_body"),
		Dynamic:    ecs.MustRegister[physics.DynamicBody](w, "dynamic_body"),
		Handles:    ecs.MustRegister[physics.Handle](w, "body_handle"),
		Players:    ecs.MustRegister[Player](w, "player"),
	}
}

// Options configures a new Engine.
type Options struct {
	Players int
	Gravity maths.Vector2
	Params  physics.IntegrationParams
	// SyncWorkers is the number of goroutines the sync stage splits
	// presentation copying across. Values below 2 copy inline.
	SyncWorkers int
	Logger      *log.Logger
}

// DefaultOptions returns options for a two player, 60 Hz session.
func DefaultOptions() Options {
	return Options{
		Players: 2,
		Gravity: physics.DefaultGravity(),
		Params:  physics.DefaultParams(),
	}
}

// Engine owns the simulation state of one session. It is not safe for
// concurrent use; readers consume published presentation frames instead.
type Engine struct {
	opts     Options
	world    *ecs.World
	phys     *physics.World
	stores   *Stores
	schedule *Schedule
	tick     int64
	frame    transform.Frame
	log      *log.Logger
}

// New creates an engine with the standard stores registered and the physics
// and sync stages populated. Games add their own stores and gameplay systems
// before the first tick.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	w := ecs.NewWorld()
	e := &Engine{
		opts:     opts,
		world:    w,
		phys:     physics.NewWorld(opts.Gravity, opts.Params),
		stores:   registerStores(w),
		schedule: NewSchedule(),
		log:      logger,
	}

	e.schedule.Add(StagePhysics, "queue_removals", queueRemovals)
	e.schedule.Add(StagePhysics, "register_bodies", registerBodies)
	e.schedule.Add(StagePhysics, "upload_velocities", uploadVelocities)
	e.schedule.Add(StagePhysics, "step", stepWorld)
	e.schedule.Add(StagePhysics, "flush_removals", flushRemovals)
	e.schedule.Add(StagePhysics, "write_back", writeBack)
	e.schedule.Add(StageSync, "present", present)
	return e
}

// World returns the entity world for setup and inspection between ticks.
func (e *Engine) World() *ecs.World { return e.world }

// Stores returns the standard component stores.
func (e *Engine) Stores() *Stores { return e.stores }

// Schedule returns the schedule so games can add their systems.
func (e *Engine) Schedule() *Schedule { return e.schedule }

// Tick returns the number of ticks simulated so far, which is also the
// number of the next tick to run.
func (e *Engine) Tick() int64 { return e.tick }

// Players returns the number of player slots.
func (e *Engine) Players() int { return e.opts.Players }

// Physics returns the physics world for read-only inspection between ticks.
// Systems must go through Context.Physics.
func (e *Engine) Physics() *physics.World { return e.phys }

// Frame returns the presentation frame produced by the last tick.
func (e *Engine) Frame() transform.Frame { return e.frame.Clone() }

// Advance runs one tick with the given per-player inputs. If any system
// fails the engine is put back to its state before the tick.
func (e *Engine) Advance(inputs []core.PlayerInput) error {
	if err := e.checkInputs(inputs); err != nil {
		return err
	}
	return e.advance(e.Save(), inputs)
}

// AdvanceFrom is Advance for a caller that already holds the state of the
// current tick, such as a snapshot it just took. before is restored if a
// system fails; no second copy is made.
func (e *Engine) AdvanceFrom(before State, inputs []core.PlayerInput) error {
	if before.Tick != e.tick {
		return fmt.Errorf("engine: advance tick %d from a state of tick %d", e.tick, before.Tick)
	}
	if err := e.checkInputs(inputs); err != nil {
		return err
	}
	return e.advance(before, inputs)
}

func (e *Engine) checkInputs(inputs []core.PlayerInput) error {
	if len(inputs) != e.opts.Players {
		return fmt.Errorf("engine: tick %d: got %d inputs for %d players", e.tick, len(inputs), e.opts.Players)
	}
	return nil
}

func (e *Engine) advance(before State, inputs []core.PlayerInput) error {
	frame := transform.Frame{Tick: e.tick + 1}
	ctx := &Context{
		Tick:    e.tick,
		Inputs:  inputs,
		World:   e.world,
		Stores:  e.stores,
		Log:     e.log,
		physics: e.phys,
		frame:   &frame,
		workers: e.opts.SyncWorkers,
	}
	if err := e.schedule.run(ctx); err != nil {
		if lerr := e.Load(before); lerr != nil {
			return errors.Join(err, lerr)
		}
		return err
	}
	e.tick++
	e.frame = frame
	return nil
}

// Save copies the complete rollback state.
func (e *Engine) Save() State {
	return State{
		Tick:    e.tick,
		World:   e.world.Snapshot(),
		Physics: e.phys.Clone(),
	}
}

// Load replaces the engine state with s. A schema mismatch is reported
// before anything changes.
func (e *Engine) Load(s State) error {
	if s.Physics == nil {
		return fmt.Errorf("engine: load tick %d: state has no physics world", s.Tick)
	}
	if err := e.world.Restore(s.World); err != nil {
		return fmt.Errorf("engine: load tick %d: %w", s.Tick, err)
	}
	e.phys = s.Physics.Clone()
	e.tick = s.Tick
	e.present()
	return nil
}

// present rebuilds the presentation frame from the current state by running
// only the sync stage.
func (e *Engine) present() {
	frame := transform.Frame{Tick: e.tick}
	ctx := &Context{
		Tick:    e.tick,
		World:   e.world,
		Stores:  e.stores,
		Log:     e.log,
		stage:   StageSync,
		physics: e.phys,
		shapes:  e.phys.DebugShapes(),
		frame:   &frame,
		workers: e.opts.SyncWorkers,
	}
	if err := e.schedule.runStage(ctx, StageSync); err != nil {
		e.log.Warn("rebuild presentation frame", "tick", e.tick, "err", err)
		return
	}
	e.frame = frame
}

// Checksum hashes the current state.
func (e *Engine) Checksum() (uint64, error) {
	return e.Save().Checksum()
}
