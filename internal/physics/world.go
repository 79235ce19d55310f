package physics

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

var (
	// ErrStaleHandle is returned for a handle whose body was removed.
	ErrStaleHandle = errors.New("physics: stale body handle")

	// ErrInvalidCollider is returned when registering a collider with
	// negative extents or an unknown shape.
	ErrInvalidCollider = errors.New("physics: invalid collider")

	// ErrInvalidParams is returned by Step when the integration parameters
	// cannot advance the world.
	ErrInvalidParams = errors.New("physics: invalid integration parameters")
)

type body struct {
	Entity       ecs.Entity
	Generation   uint32
	Live         bool
	Kind         BodyKind
	Collider     Collider
	Pos          maths.Vector2
	Rotation     maths.Number
	Velocity     maths.Vector2
	GravityScale maths.Number
	Surface      Surface
	RestTicks    int
	Sleeping     bool
	Island       uint32
}

// state holds every sub-store of the world. All of it is plain data so a
// snapshot is a deep copy and an encoding is deterministic.
type state struct {
	Gravity  maths.Vector2
	Params   IntegrationParams
	Steps    uint64
	Bodies   []body
	Free     []uint32
	Bindings []Binding    // sorted by entity
	Pending  []ecs.Entity // sorted, unique
	Joints   []Joint
	Pairs    []Pair
	Contacts []Contact
	Grid     grid
	// CCDSubsteps counts the continuous collision substeps of the last step.
	CCDSubsteps int
}

// World is the physics world state. It is owned by a single goroutine.
type World struct {
	s state
}

// NewWorld creates an empty world.
func NewWorld(gravity maths.Vector2, params IntegrationParams) *World {
	w := &World{s: state{Gravity: gravity, Params: params}}
	w.s.Grid.Cell = params.GridCell
	return w
}

// Gravity returns the world gravity.
func (w *World) Gravity() maths.Vector2 { return w.s.Gravity }

// Params returns the integration parameters.
func (w *World) Params() IntegrationParams { return w.s.Params }

// Steps returns how many times the world has been stepped.
func (w *World) Steps() uint64 { return w.s.Steps }

// CCDSubsteps returns the continuous collision substeps of the last step.
func (w *World) CCDSubsteps() int { return w.s.CCDSubsteps }

// Clone returns a deep copy of the world.
func (w *World) Clone() *World {
	c := &World{s: w.s}
	c.s.Bodies = slices.Clone(w.s.Bodies)
	c.s.Free = slices.Clone(w.s.Free)
	c.s.Bindings = slices.Clone(w.s.Bindings)
	c.s.Pending = slices.Clone(w.s.Pending)
	c.s.Joints = slices.Clone(w.s.Joints)
	c.s.Pairs = slices.Clone(w.s.Pairs)
	c.s.Contacts = slices.Clone(w.s.Contacts)
	c.s.Grid = w.s.Grid.clone()
	return c
}

// EncodeMsgpack writes the full world state.
func (w *World) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(&w.s)
}

func (w *World) bindingIndex(e ecs.Entity) (int, bool) {
	return slices.BinarySearchFunc(w.s.Bindings, e, func(b Binding, e ecs.Entity) int {
		return cmp.Compare(b.Entity, e)
	})
}

// HandleOf returns the body bound to e.
func (w *World) HandleOf(e ecs.Entity) (BodyHandle, bool) {
	if i, ok := w.bindingIndex(e); ok {
		return w.s.Bindings[i].Handle, true
	}
	return BodyHandle{}, false
}

// Bindings returns every entity-body binding in entity order.
func (w *World) Bindings() []Binding {
	return slices.Clone(w.s.Bindings)
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	return len(w.s.Bindings)
}

// Register creates a body for e. Registering an entity that already has a
// body returns the existing handle and changes nothing.
func (w *World) Register(e ecs.Entity, c Collider, kind BodyKind, t transform.Transform2) (BodyHandle, error) {
	i, ok := w.bindingIndex(e)
	if ok {
		return w.s.Bindings[i].Handle, nil
	}
	if err := validateCollider(c); err != nil {
		return BodyHandle{}, err
	}

	b := body{
		Entity:       e,
		Live:         true,
		Kind:         kind,
		Collider:     c,
		Pos:          t.Pos,
		Rotation:     t.Rotation,
		GravityScale: maths.One,
	}

	var idx uint32
	if n := len(w.s.Free); n > 0 {
		idx = w.s.Free[n-1]
		w.s.Free = w.s.Free[:n-1]
		b.Generation = w.s.Bodies[idx].Generation + 1
		b.Island = idx
		w.s.Bodies[idx] = b
	} else {
		idx = uint32(len(w.s.Bodies))
		b.Generation = 1
		b.Island = idx
		w.s.Bodies = append(w.s.Bodies, b)
	}

	h := BodyHandle{Index: idx, Generation: b.Generation}
	w.s.Bindings = slices.Insert(w.s.Bindings, i, Binding{Entity: e, Handle: h})
	w.rebuildGrid()
	return h, nil
}

func validateCollider(c Collider) error {
	switch c.Shape {
	case ShapeCuboid:
		if c.Size.X.Sign() < 0 || c.Size.Y.Sign() < 0 {
			return fmt.Errorf("%w: negative half extents %s", ErrInvalidCollider, c.Size)
		}
	case ShapeBall:
		if c.Size.X.Sign() < 0 {
			return fmt.Errorf("%w: negative radius %s", ErrInvalidCollider, c.Size.X)
		}
	default:
		return fmt.Errorf("%w: unknown shape %d", ErrInvalidCollider, c.Shape)
	}
	return nil
}

func (w *World) get(h BodyHandle) (*body, error) {
	if int(h.Index) >= len(w.s.Bodies) {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	b := &w.s.Bodies[h.Index]
	if !b.Live || b.Generation != h.Generation {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return b, nil
}

// ResolvedTransform returns the body position and rotation after the last
// step. ok is false for a stale handle.
func (w *World) ResolvedTransform(h BodyHandle) (pos maths.Vector2, rot maths.Number, ok bool) {
	b, err := w.get(h)
	if err != nil {
		return maths.Vector2{}, maths.Zero, false
	}
	return b.Pos, b.Rotation, true
}

// SetVelocity sets the velocity of a moving body in units per second. A
// non-zero velocity wakes the body. Static bodies ignore it.
func (w *World) SetVelocity(h BodyHandle, v maths.Vector2) error {
	b, err := w.get(h)
	if err != nil {
		return err
	}
	if b.Kind == Static {
		return nil
	}
	b.Velocity = v
	if !v.IsZero() {
		b.Sleeping = false
		b.RestTicks = 0
	}
	return nil
}

// SetGravityScale sets how strongly gravity acts on a dynamic body.
func (w *World) SetGravityScale(h BodyHandle, scale maths.Number) error {
	b, err := w.get(h)
	if err != nil {
		return err
	}
	b.GravityScale = scale
	return nil
}

// Velocity returns the current velocity of a body.
func (w *World) Velocity(h BodyHandle) (maths.Vector2, error) {
	b, err := w.get(h)
	if err != nil {
		return maths.Vector2{}, err
	}
	return b.Velocity, nil
}

// SurfaceOf returns the surface flags set by the last step.
func (w *World) SurfaceOf(h BodyHandle) (Surface, error) {
	b, err := w.get(h)
	if err != nil {
		return Surface{}, err
	}
	return b.Surface, nil
}

// Sleeping reports whether the body is asleep.
func (w *World) Sleeping(h BodyHandle) (bool, error) {
	b, err := w.get(h)
	if err != nil {
		return false, err
	}
	return b.Sleeping, nil
}

// QueueRemoval records that the body of e must be removed at the next
// FlushRemovals. Entities without a body are ignored.
func (w *World) QueueRemoval(e ecs.Entity) {
	if _, ok := w.bindingIndex(e); !ok {
		return
	}
	i, found := slices.BinarySearch(w.s.Pending, e)
	if !found {
		w.s.Pending = slices.Insert(w.s.Pending, i, e)
	}
}

// FlushRemovals removes every queued body and returns how many were removed.
func (w *World) FlushRemovals() int {
	pending := w.s.Pending
	w.s.Pending = nil
	n := 0
	for _, e := range pending {
		if w.remove(e) {
			n++
		}
	}
	if n > 0 {
		w.rebuildGrid()
	}
	return n
}

// Remove deletes the body bound to e together with the binding. Removing an
// entity that has no body is a no-op, so replays may repeat removals.
func (w *World) Remove(e ecs.Entity) {
	if w.remove(e) {
		w.rebuildGrid()
	}
	if i, ok := slices.BinarySearch(w.s.Pending, e); ok {
		w.s.Pending = slices.Delete(w.s.Pending, i, i+1)
	}
}

func (w *World) remove(e ecs.Entity) bool {
	i, ok := w.bindingIndex(e)
	if !ok {
		return false
	}
	h := w.s.Bindings[i].Handle
	w.s.Bindings = slices.Delete(w.s.Bindings, i, i+1)

	b := &w.s.Bodies[h.Index]
	b.Live = false
	b.Sleeping = false
	w.s.Free = append(w.s.Free, h.Index)

	// Whatever rested on the body has to move again.
	islands := []uint32{b.Island}
	for _, c := range w.s.Contacts {
		switch h {
		case c.A:
			islands = append(islands, w.s.Bodies[c.B.Index].Island)
		case c.B:
			islands = append(islands, w.s.Bodies[c.A.Index].Island)
		}
	}
	for k := range w.s.Bodies {
		o := &w.s.Bodies[k]
		if o.Live && slices.Contains(islands, o.Island) {
			o.Sleeping = false
			o.RestTicks = 0
		}
	}

	w.s.Joints = slices.DeleteFunc(w.s.Joints, func(j Joint) bool { return j.A == h || j.B == h })
	w.s.Pairs = slices.DeleteFunc(w.s.Pairs, func(p Pair) bool { return p.A == h || p.B == h })
	w.s.Contacts = slices.DeleteFunc(w.s.Contacts, func(c Contact) bool { return c.A == h || c.B == h })
	return true
}

// AddJoint pins body b at offset from body a. b must not be static.
func (w *World) AddJoint(a, b BodyHandle, offset maths.Vector2) error {
	if _, err := w.get(a); err != nil {
		return err
	}
	bb, err := w.get(b)
	if err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("physics: joint of %s to itself", a)
	}
	if bb.Kind == Static {
		return fmt.Errorf("physics: joint child %s is static", b)
	}
	w.s.Joints = append(w.s.Joints, Joint{A: a, B: b, Offset: offset})
	return nil
}

// Joints returns the joint set.
func (w *World) Joints() []Joint {
	return slices.Clone(w.s.Joints)
}

// Pairs returns the broad phase pairs of the last step.
func (w *World) Pairs() []Pair {
	return slices.Clone(w.s.Pairs)
}

// Contacts returns the narrow phase contacts of the last step.
func (w *World) Contacts() []Contact {
	return slices.Clone(w.s.Contacts)
}

// DebugShapes returns the outline of every live collider in handle order.
func (w *World) DebugShapes() []DebugShape {
	out := make([]DebugShape, 0, len(w.s.Bindings))
	for _, b := range w.s.Bodies {
		if !b.Live {
			continue
		}
		out = append(out, DebugShape{
			Entity:      b.Entity,
			Shape:       b.Collider.Shape,
			Center:      b.Pos,
			HalfExtents: b.Collider.HalfExtents(),
			Sleeping:    b.Sleeping,
		})
	}
	return out
}

func (w *World) handle(idx uint32) BodyHandle {
	return BodyHandle{Index: idx, Generation: w.s.Bodies[idx].Generation}
}
