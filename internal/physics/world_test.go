package physics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

func playerCollider() Collider {
	return Collider{Shape: ShapeCuboid, Size: maths.V2(7, 14), Layer: 1, LayerMask: 1}
}

func mustRegister(t *testing.T, w *World, e ecs.Entity, c Collider, kind BodyKind, pos maths.Vector2) BodyHandle {
	t.Helper()
	h, err := w.Register(e, c, kind, transform.At(pos))
	if err != nil {
		t.Fatalf("Register(%d) failed: %v", e, err)
	}
	return h
}

func mustStep(t *testing.T, w *World) {
	t.Helper()
	if err := w.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
}

func TestKinematicStopsAtCollider(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	p0 := mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(0, 0))
	p1 := mustRegister(t, w, 2, playerCollider(), Kinematic, maths.V2(40, 0))

	// 180 units/s at 60 Hz is 3 units per tick.
	if err := w.SetVelocity(p0, maths.V2(180, 0)); err != nil {
		t.Fatal(err)
	}

	prev := maths.Zero
	for tick := 1; tick <= 10; tick++ {
		mustStep(t, w)
		pos, _, ok := w.ResolvedTransform(p0)
		if !ok {
			t.Fatal("player 0 handle went stale")
		}
		if pos.X.Less(prev) {
			t.Fatalf("tick %d: x went back from %s to %s", tick, prev, pos.X)
		}
		prev = pos.X
	}

	// Half extents 7 + 7: the bodies touch when 14 apart.
	if prev != maths.FromInt(26) {
		t.Errorf("player 0 x = %s, expected 26", prev)
	}
	surf, _ := w.SurfaceOf(p0)
	if !surf.OnWall {
		t.Error("blocked body should report OnWall")
	}
	if v, _ := w.Velocity(p0); !v.X.IsZero() {
		t.Errorf("blocked axis velocity = %s, expected 0", v.X)
	}
	if pos, _, _ := w.ResolvedTransform(p1); pos != maths.V2(40, 0) {
		t.Errorf("player 1 moved to %s", pos)
	}
	if cs := w.Contacts(); len(cs) != 1 || !cs[0].Depth.IsZero() {
		t.Errorf("contacts = %+v, expected one touching contact", cs)
	}
}

func TestNonInteractingLayersPassThrough(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	c0 := playerCollider()
	c1 := playerCollider()
	c1.Layer = 2 // c0 does not accept layer 2
	p0 := mustRegister(t, w, 1, c0, Kinematic, maths.V2(0, 0))
	mustRegister(t, w, 2, c1, Kinematic, maths.V2(40, 0))
	_ = w.SetVelocity(p0, maths.V2(180, 0))

	for i := 0; i < 10; i++ {
		mustStep(t, w)
	}
	if pos, _, _ := w.ResolvedTransform(p0); pos.X != maths.FromInt(30) {
		t.Errorf("x = %s, expected 30", pos.X)
	}
	if len(w.Pairs()) != 0 {
		t.Error("non-interacting bodies formed a broad phase pair")
	}
}

func TestSlideAlongWall(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	wall := Collider{Shape: ShapeCuboid, Size: maths.V2(5, 100), Layer: 1, LayerMask: 1}
	mustRegister(t, w, 1, wall, Static, maths.V2(20, 0))
	p := mustRegister(t, w, 2, playerCollider(), Kinematic, maths.V2(0, 0))
	_ = w.SetVelocity(p, maths.V2(600, 120)) // 10 right, 2 up per tick

	for i := 0; i < 3; i++ {
		mustStep(t, w)
	}
	pos, _, _ := w.ResolvedTransform(p)
	// Wall face at 15, player half width 7.
	if pos.X != maths.FromInt(8) {
		t.Errorf("x = %s, expected 8", pos.X)
	}
	if pos.Y != maths.FromInt(6) {
		t.Errorf("y = %s, expected to keep sliding to 6", pos.Y)
	}
}

func TestDynamicBodyLandsAndSleeps(t *testing.T) {
	w := NewWorld(maths.V2(0, -600), DefaultParams())
	floor := Collider{Shape: ShapeCuboid, Size: maths.V2(50, 5), Layer: 1, LayerMask: 1}
	ball := Collider{Shape: ShapeBall, Size: maths.V2(2, 2), Layer: 1, LayerMask: 1}
	mustRegister(t, w, 1, floor, Static, maths.V2(0, -20))
	b := mustRegister(t, w, 2, ball, Dynamic, maths.V2(0, 0))

	for i := 0; i < 120; i++ {
		mustStep(t, w)
	}

	pos, _, _ := w.ResolvedTransform(b)
	if pos.Y != maths.FromInt(-13) {
		t.Errorf("ball y = %s, expected to rest at -13", pos.Y)
	}
	if surf, _ := w.SurfaceOf(b); !surf.OnFloor {
		t.Error("resting ball should report OnFloor")
	}
	if asleep, _ := w.Sleeping(b); !asleep {
		t.Error("resting ball should be asleep")
	}

	// Pull the floor away: the ball wakes up and falls.
	w.Remove(1)
	mustStep(t, w)
	if asleep, _ := w.Sleeping(b); asleep {
		t.Error("ball should wake when its support is removed")
	}
	if pos2, _, _ := w.ResolvedTransform(b); !pos2.Y.Less(pos.Y) {
		t.Errorf("ball did not fall after floor removal: %s", pos2.Y)
	}
}

func TestCCDPreventsTunneling(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	thin := Collider{Shape: ShapeCuboid, Size: maths.V2(1, 20), Layer: 1, LayerMask: 1}
	mustRegister(t, w, 1, thin, Static, maths.V2(30, 0))
	c := Collider{Shape: ShapeCuboid, Size: maths.V2(4, 4), Layer: 1, LayerMask: 1}
	p := mustRegister(t, w, 2, c, Kinematic, maths.V2(0, 0))
	_ = w.SetVelocity(p, maths.V2(3000, 0)) // 50 units in one step

	mustStep(t, w)
	pos, _, _ := w.ResolvedTransform(p)
	if pos.X != maths.FromInt(25) {
		t.Errorf("x = %s, expected to stop at 25", pos.X)
	}
	if w.CCDSubsteps() < 2 {
		t.Errorf("CCD substeps = %d, expected the move to be split", w.CCDSubsteps())
	}
}

func TestNoTunnelingWithSingleSubstep(t *testing.T) {
	params := DefaultParams()
	params.MaxSubsteps = 1
	w := NewWorld(DefaultGravity(), params)
	thin := Collider{Shape: ShapeCuboid, Size: maths.V2(1, 20), Layer: 1, LayerMask: 1}
	mustRegister(t, w, 1, thin, Static, maths.V2(30, 0))
	ball := Collider{Shape: ShapeBall, Size: maths.V2(4, 0), Layer: 1, LayerMask: 1}
	p := mustRegister(t, w, 2, ball, Kinematic, maths.V2(0, 0))
	_ = w.SetVelocity(p, maths.V2(6000, 0)) // 100 units in one step

	mustStep(t, w)
	pos, _, _ := w.ResolvedTransform(p)
	if pos.X != maths.FromInt(25) {
		t.Errorf("x = %s, expected to stop at 25", pos.X)
	}
	if w.CCDSubsteps() != 1 {
		t.Errorf("CCD substeps = %d, expected 1", w.CCDSubsteps())
	}
}

func TestOverlappingBodiesOnlySeparate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		vx      int32
		wantX   maths.Number
		blocked bool
	}{
		{"towards", 180, maths.Zero, true},
		{"away", -180, maths.FromInt(-3), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWorld(DefaultGravity(), DefaultParams())
			// 10 apart with half widths 7 + 7: overlapping by 4.
			p := mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(0, 0))
			mustRegister(t, w, 2, playerCollider(), Static, maths.V2(10, 0))
			_ = w.SetVelocity(p, maths.V2(tc.vx, 0))

			mustStep(t, w)
			pos, _, _ := w.ResolvedTransform(p)
			if pos.X != tc.wantX {
				t.Errorf("x = %s, expected %s", pos.X, tc.wantX)
			}
			if surf, _ := w.SurfaceOf(p); surf.OnWall != tc.blocked {
				t.Errorf("OnWall = %v, expected %v", surf.OnWall, tc.blocked)
			}
		})
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	h1 := mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(0, 0))
	h2 := mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(99, 99))
	if h1 != h2 {
		t.Errorf("second Register returned %s, expected %s", h2, h1)
	}
	if w.BodyCount() != 1 {
		t.Errorf("BodyCount = %d, expected 1", w.BodyCount())
	}
	if pos, _, _ := w.ResolvedTransform(h1); !pos.IsZero() {
		t.Error("second Register changed the body")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	h := mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(0, 0))
	mustRegister(t, w, 2, playerCollider(), Kinematic, maths.V2(40, 0))

	w.Remove(1)
	after := encode(t, w)

	w.Remove(1)
	w.Remove(77) // never registered
	if !bytes.Equal(after, encode(t, w)) {
		t.Error("redundant Remove changed the world")
	}
	if _, ok := w.HandleOf(1); ok {
		t.Error("binding survived Remove")
	}
	if _, _, ok := w.ResolvedTransform(h); ok {
		t.Error("handle of removed body still resolves")
	}
	if err := w.SetVelocity(h, maths.V2(1, 0)); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetVelocity on removed body error = %v", err)
	}
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	old := mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(0, 0))
	w.Remove(1)
	fresh := mustRegister(t, w, 2, playerCollider(), Kinematic, maths.V2(5, 0))
	if fresh.Index != old.Index || fresh.Generation == old.Generation {
		t.Errorf("fresh handle %s, old %s", fresh, old)
	}
	if _, _, ok := w.ResolvedTransform(old); ok {
		t.Error("stale handle resolved to the new body")
	}
}

func TestQueuedRemoval(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	mustRegister(t, w, 1, playerCollider(), Kinematic, maths.V2(0, 0))
	w.QueueRemoval(1)
	w.QueueRemoval(1)
	w.QueueRemoval(5) // no body

	if w.BodyCount() != 1 {
		t.Fatal("queued removal applied early")
	}
	if n := w.FlushRemovals(); n != 1 {
		t.Errorf("FlushRemovals = %d, expected 1", n)
	}
	if n := w.FlushRemovals(); n != 0 {
		t.Errorf("second FlushRemovals = %d, expected 0", n)
	}
}

func TestInvalidCollider(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	bad := Collider{Shape: ShapeCuboid, Size: maths.V2(-1, 2)}
	if _, err := w.Register(1, bad, Static, transform.Transform2{}); !errors.Is(err, ErrInvalidCollider) {
		t.Errorf("error = %v, expected ErrInvalidCollider", err)
	}
	if _, err := w.Register(1, Collider{Shape: 9}, Static, transform.Transform2{}); !errors.Is(err, ErrInvalidCollider) {
		t.Errorf("error = %v, expected ErrInvalidCollider", err)
	}
}

func TestInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.TicksPerSecond = 0
	w := NewWorld(DefaultGravity(), p)
	if err := w.Step(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Step error = %v, expected ErrInvalidParams", err)
	}
}

func TestJointFollowsParent(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	c := Collider{Shape: ShapeBall, Size: maths.V2(1, 1), Layer: 1, LayerMask: 0}
	a := mustRegister(t, w, 1, c, Kinematic, maths.V2(0, 0))
	b := mustRegister(t, w, 2, c, Kinematic, maths.V2(0, 0))
	if err := w.AddJoint(a, b, maths.V2(0, 10)); err != nil {
		t.Fatal(err)
	}
	_ = w.SetVelocity(a, maths.V2(60, 0))
	mustStep(t, w)

	pos, _, _ := w.ResolvedTransform(b)
	if pos != maths.V2(1, 10) {
		t.Errorf("joint child at %s, expected (1, 10)", pos)
	}
	islands := w.Islands()
	if len(islands) != 1 || len(islands[0]) != 2 {
		t.Errorf("islands = %v, expected one island of two", islands)
	}
	if err := w.AddJoint(a, a, maths.Vector2{}); err == nil {
		t.Error("self joint should fail")
	}
}

func TestQueries(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	ball := Collider{Shape: ShapeBall, Size: maths.V2(5, 5), Layer: 1, LayerMask: 1}
	box := Collider{Shape: ShapeCuboid, Size: maths.V2(2, 2), Layer: 1, LayerMask: 1}
	big := Collider{Shape: ShapeCuboid, Size: maths.V2(1000, 1), Layer: 1, LayerMask: 1}
	hb := mustRegister(t, w, 1, ball, Static, maths.V2(0, 0))
	hx := mustRegister(t, w, 2, box, Static, maths.V2(100, 100))
	hf := mustRegister(t, w, 3, big, Static, maths.V2(0, -50))

	got := w.QueryAABB(AABB{Min: maths.V2(-1, -1), Max: maths.V2(1, 1)})
	if len(got) != 1 || got[0] != hb {
		t.Errorf("QueryAABB near origin = %v", got)
	}
	got = w.QueryAABB(AABB{Min: maths.V2(-2000, -2000), Max: maths.V2(2000, 2000)})
	if len(got) != 3 {
		t.Errorf("QueryAABB everything = %v", got)
	}
	if got := w.QueryPoint(maths.V2(101, 101)); len(got) != 1 || got[0] != hx {
		t.Errorf("QueryPoint in box = %v", got)
	}
	if got := w.QueryPoint(maths.V2(900, -50)); len(got) != 1 || got[0] != hf {
		t.Errorf("QueryPoint in oversized floor = %v", got)
	}
	// Inside the ball bounds but outside the circle.
	if got := w.QueryPoint(maths.V2(4, 4)); len(got) != 0 {
		t.Errorf("QueryPoint in ball corner = %v", got)
	}
}

func TestBallContacts(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	ball := Collider{Shape: ShapeBall, Size: maths.V2(3, 3), Layer: 1, LayerMask: 1}
	box := Collider{Shape: ShapeCuboid, Size: maths.V2(2, 2), Layer: 1, LayerMask: 1}
	a := mustRegister(t, w, 1, ball, Kinematic, maths.V2(0, 0))
	mustRegister(t, w, 2, ball, Kinematic, maths.V2(6, 0))
	mustRegister(t, w, 3, box, Kinematic, maths.V2(0, 5))
	mustStep(t, w)

	cs := w.Contacts()
	if len(cs) != 2 {
		t.Fatalf("contacts = %+v, expected ball-ball and ball-box", cs)
	}
	for _, c := range cs {
		if c.A != a {
			t.Errorf("contact %+v should involve the first ball", c)
		}
		if !c.Depth.IsZero() {
			t.Errorf("touching contact depth = %s", c.Depth)
		}
	}
	if cs[0].Normal != maths.V2(1, 0) {
		t.Errorf("ball-ball normal = %s", cs[0].Normal)
	}
	if cs[1].Normal != maths.V2(0, 1) {
		t.Errorf("ball-box normal = %s", cs[1].Normal)
	}
}

func TestDebugShapes(t *testing.T) {
	w := NewWorld(DefaultGravity(), DefaultParams())
	mustRegister(t, w, 4, Collider{Shape: ShapeBall, Size: maths.V2(3, 0)}, Static, maths.V2(1, 1))
	mustRegister(t, w, 5, playerCollider(), Kinematic, maths.V2(0, 0))

	shapes := w.DebugShapes()
	if len(shapes) != 2 {
		t.Fatalf("got %d shapes", len(shapes))
	}
	if shapes[0].Shape != ShapeBall || shapes[0].HalfExtents != maths.V2(3, 3) {
		t.Errorf("ball outline = %+v", shapes[0])
	}
	if shapes[1].Shape != ShapeCuboid || shapes[1].HalfExtents != maths.V2(7, 14) {
		t.Errorf("cuboid outline = %+v", shapes[1])
	}
}

func TestCloneIsIndependentAndDeterministic(t *testing.T) {
	w := buildScene(t)
	c := w.Clone()

	for i := 0; i < 50; i++ {
		mustStep(t, w)
		mustStep(t, c)
	}
	if !bytes.Equal(encode(t, w), encode(t, c)) {
		t.Fatal("clone diverged from original under identical steps")
	}

	snapshot := w.Clone()
	mustStep(t, w)
	if bytes.Equal(encode(t, w), encode(t, snapshot)) {
		t.Error("stepping the world changed its clone")
	}
}

func buildScene(t *testing.T) *World {
	t.Helper()
	w := NewWorld(maths.V2(0, -300), DefaultParams())
	floor := Collider{Shape: ShapeCuboid, Size: maths.V2(200, 4), Layer: 1, LayerMask: 1}
	mustRegister(t, w, 1, floor, Static, maths.V2(0, -40))
	for i := int32(0); i < 6; i++ {
		ball := Collider{Shape: ShapeBall, Size: maths.V2(3, 3), Layer: 1, LayerMask: 1}
		h := mustRegister(t, w, ecs.Entity(10+i), ball, Dynamic, maths.V2(i*9-20, i*5))
		_ = w.SetVelocity(h, maths.V2(30*(i%3-1), 0))
	}
	return w
}

func encode(t *testing.T, w *World) []byte {
	t.Helper()
	data, err := msgpack.Marshal(w)
	if err != nil {
		t.Fatalf("encode world: %v", err)
	}
	return data
}
