package engine

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/physics"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

// queueRemovals hands entities despawned since the last physics pass to the
// pending removal table.
func queueRemovals(ctx *Context) error {
	pw, err := ctx.Physics()
	if err != nil {
		return err
	}
	for _, e := range ctx.World.DrainDespawned() {
		pw.QueueRemoval(e)
	}
	return nil
}

// registerBodies creates bodies for entities that gained a collider and a
// body component since the last pass. Registration only ever happens here.
func registerBodies(ctx *Context) error {
	pw, err := ctx.Physics()
	if err != nil {
		return err
	}
	s := ctx.Stores
	var regErr error
	s.Colliders.Each(func(e ecs.Entity, c *physics.Collider) {
		if regErr != nil || s.Handles.Has(e) {
			return
		}
		kind, ok := bodyKind(s, e)
		if !ok {
			return
		}
		t, _ := s.Transforms.Get(e)
		h, err := pw.Register(e, *c, kind, t)
		if err != nil {
			regErr = fmt.Errorf("register entity %d: %w", e, err)
			return
		}
		if db, ok := s.Dynamic.Get(e); ok {
			if err := pw.SetGravityScale(h, db.GravityScale); err != nil {
				regErr = err
				return
			}
		}
		s.Handles.Set(e, physics.Handle{Body: h})
		ctx.Log.Debug("registered body", "tick", ctx.Tick, "entity", e, "kind", kind, "handle", h)
	})
	return regErr
}

func bodyKind(s *Stores, e ecs.Entity) (physics.BodyKind, bool) {
	switch {
	case s.Kinematic.Has(e):
		return physics.Kinematic, true
	case s.Dynamic.Has(e):
		return physics.Dynamic, true
	case s.Static.Has(e):
		return physics.Static, true
	default:
		return 0, false
	}
}

// uploadVelocities copies the velocities set by gameplay into the bodies.
func uploadVelocities(ctx *Context) error {
	pw, err := ctx.Physics()
	if err != nil {
		return err
	}
	s := ctx.Stores
	var upErr error
	ecs.Each2(s.Kinematic, s.Handles, func(e ecs.Entity, kb *physics.KinematicBody, h *physics.Handle) {
		if upErr == nil {
			upErr = pw.SetVelocity(h.Body, kb.Velocity)
		}
	})
	ecs.Each2(s.Dynamic, s.Handles, func(e ecs.Entity, db *physics.DynamicBody, h *physics.Handle) {
		if upErr != nil {
			return
		}
		if v, err := pw.Velocity(h.Body); err == nil && v == db.Velocity {
			return // leave a resting body asleep
		}
		upErr = pw.SetVelocity(h.Body, db.Velocity)
	})
	return upErr
}

func stepWorld(ctx *Context) error {
	pw, err := ctx.Physics()
	if err != nil {
		return err
	}
	return pw.Step()
}

func flushRemovals(ctx *Context) error {
	pw, err := ctx.Physics()
	if err != nil {
		return err
	}
	if n := pw.FlushRemovals(); n > 0 {
		ctx.Log.Debug("removed bodies", "tick", ctx.Tick, "count", n)
	}
	return nil
}

// writeBack copies resolved positions, velocities and surface flags from the
// physics world into the components.
func writeBack(ctx *Context) error {
	pw, err := ctx.Physics()
	if err != nil {
		return err
	}
	s := ctx.Stores
	var wbErr error
	s.Handles.Each(func(e ecs.Entity, h *physics.Handle) {
		if wbErr != nil {
			return
		}
		pos, rot, ok := pw.ResolvedTransform(h.Body)
		if !ok {
			wbErr = fmt.Errorf("entity %d: %w: %s", e, physics.ErrStaleHandle, h.Body)
			return
		}
		t := s.Transforms.Ref(e)
		if t == nil {
			s.Transforms.Set(e, transform.Transform2{Pos: pos, Scale: maths.NewVector2(maths.One, maths.One), Rotation: rot})
		} else {
			t.Pos, t.Rotation = pos, rot
		}
		v, _ := pw.Velocity(h.Body)
		surf, _ := pw.SurfaceOf(h.Body)
		if kb := s.Kinematic.Ref(e); kb != nil {
			kb.Velocity, kb.Surface = v, surf
		}
		if db := s.Dynamic.Ref(e); db != nil {
			db.Velocity, db.Surface = v, surf
		}
	})
	ctx.shapes = pw.DebugShapes()
	return wbErr
}

// present builds the presentation frame from Transform2. With more than one
// sync worker the copy is split into chunks that write disjoint ranges of
// the frame; Wait is the barrier before the stage ends.
func present(ctx *Context) error {
	frame, err := ctx.Frame()
	if err != nil {
		return err
	}
	s := ctx.Stores
	ents := s.Transforms.Entities()
	frame.Items = make([]transform.Item, len(ents))

	fill := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			e := ents[i]
			t, _ := s.Transforms.Get(e)
			item := transform.Item{Entity: uint32(e), Pose: transform.ToPose(t), Player: -1}
			if p, ok := s.Players.Get(e); ok {
				item.Player = p.Handle
			}
			frame.Items[i] = item
		}
	}

	if ctx.workers < 2 || len(ents) < ctx.workers {
		fill(0, len(ents))
	} else {
		var g errgroup.Group
		chunk := (len(ents) + ctx.workers - 1) / ctx.workers
		for lo := 0; lo < len(ents); lo += chunk {
			hi := min(lo+chunk, len(ents))
			g.Go(func() error {
				fill(lo, hi)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	frame.Outlines = make([]transform.Outline, 0, len(ctx.shapes))
	for _, sh := range ctx.shapes {
		frame.Outlines = append(frame.Outlines, outlineOf(sh))
	}
	return nil
}

// outlineOf is the single place collider shapes are mapped to drawable
// primitives.
func outlineOf(sh physics.DebugShape) transform.Outline {
	o := transform.Outline{Center: sh.Center, HalfExtents: sh.HalfExtents, Sleeping: sh.Sleeping}
	switch sh.Shape {
	case physics.ShapeBall:
		o.Kind = transform.OutlineBall
	case physics.ShapeCuboid:
		o.Kind = transform.OutlineCuboid
	default:
		panic(fmt.Sprintf("engine: unknown shape %s", sh.Shape))
	}
	return o
}
