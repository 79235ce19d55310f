package physics

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// Step advances the world by exactly one fixed timestep. The sub-stores
// always advance together, in this order:
//
//  1. gravity integration of dynamic bodies
//  2. move-and-collide of every awake moving body, substepped for CCD
//  3. broad phase (sort and sweep)
//  4. narrow phase contacts
//  5. joint constraints
//  6. islands and sleeping
//  7. query grid rebuild
func (w *World) Step() error {
	p := w.s.Params
	if p.TicksPerSecond <= 0 || p.MaxSubsteps <= 0 {
		return fmt.Errorf("%w: ticks_per_second=%d max_substeps=%d", ErrInvalidParams, p.TicksPerSecond, p.MaxSubsteps)
	}

	w.s.Steps++
	w.s.CCDSubsteps = 0

	for i := range w.s.Bodies {
		b := &w.s.Bodies[i]
		if !b.Live || b.Kind == Static {
			continue
		}
		if b.Sleeping {
			continue
		}
		b.Surface = Surface{}
		if b.Kind == Dynamic {
			dv, err := w.s.Gravity.Scale(b.GravityScale).DivInt(p.TicksPerSecond)
			if err != nil {
				return fmt.Errorf("physics: integrate body %d: %w", i, err)
			}
			b.Velocity = b.Velocity.Add(dv)
		}
		d, err := b.Velocity.DivInt(p.TicksPerSecond)
		if err != nil {
			return fmt.Errorf("physics: integrate body %d: %w", i, err)
		}
		if w.moveAndCollide(uint32(i), d) {
			b.RestTicks = 0
		} else {
			b.RestTicks++
		}
	}

	w.broadPhase()
	w.narrowPhase()
	w.solveJoints()
	w.updateIslands()
	w.rebuildGrid()
	return nil
}

// moveAndCollide moves body i by d, x axis first then y, stopping flush
// against any interacting collider. A blocked axis loses its velocity and
// sets the matching surface flag; the free axis keeps sliding. It reports
// whether the body moved at all.
func (w *World) moveAndCollide(i uint32, d maths.Vector2) bool {
	if d.IsZero() {
		return false
	}
	b := &w.s.Bodies[i]
	n := w.substeps(b.Collider, d)
	w.s.CCDSubsteps += n

	part, _ := d.DivInt(int64(n))
	rest := d.Sub(part.Scale(maths.FromInt(int32(n - 1))))
	blockedX, blockedY := false, false
	moved := false

	for k := 0; k < n; k++ {
		step := part
		if k == n-1 {
			step = rest
		}
		if !blockedX && !step.X.IsZero() {
			got, blocked := w.sweep(i, maths.NewVector2(step.X, maths.Zero))
			if !got.IsZero() {
				moved = true
				b.Pos = b.Pos.Add(got)
			}
			if blocked {
				blockedX = true
				b.Surface.OnWall = true
				b.Velocity.X = maths.Zero
			}
		}
		if !blockedY && !step.Y.IsZero() {
			got, blocked := w.sweep(i, maths.NewVector2(maths.Zero, step.Y))
			if !got.IsZero() {
				moved = true
				b.Pos = b.Pos.Add(got)
			}
			if blocked {
				blockedY = true
				if step.Y.Sign() < 0 {
					b.Surface.OnFloor = true
				} else {
					b.Surface.OnCeiling = true
				}
				b.Velocity.Y = maths.Zero
			}
		}
	}
	return moved
}

// substeps splits a displacement so no substep is longer than the smallest
// half extent of the moving collider.
func (w *World) substeps(c Collider, d maths.Vector2) int {
	h := c.HalfExtents()
	limit := maths.Min(h.X, h.Y)
	if limit.Sign() <= 0 {
		return 1
	}
	longest := maths.Max(d.X.Abs(), d.Y.Abs())
	n := (longest.Raw() + limit.Raw() - 1) / limit.Raw()
	return int(min(max(n, 1), int64(w.s.Params.MaxSubsteps)))
}

// sweep returns how far body i can move along delta, which has exactly one
// non-zero component, and whether something stopped it. The whole path is
// checked, not only its end, so thin colliders cannot be skipped. A body
// that already overlaps i only lets it move in the direction that takes
// their centers apart along the axis.
func (w *World) sweep(i uint32, delta maths.Vector2) (maths.Vector2, bool) {
	b := &w.s.Bodies[i]

	axisX := !delta.X.IsZero()
	axis := func(v maths.Vector2) maths.Number {
		if axisX {
			return v.X
		}
		return v.Y
	}
	full := axis(delta).Raw()
	sign := int64(1)
	if full < 0 {
		sign = -1
	}
	allowed := full * sign // magnitude in raw units
	blocked := false

	at := func(mag int64) maths.Vector2 {
		off := maths.FromRaw(mag * sign)
		if axisX {
			return b.Pos.Add(maths.NewVector2(off, maths.Zero))
		}
		return b.Pos.Add(maths.NewVector2(maths.Zero, off))
	}

	for j := range w.s.Bodies {
		o := &w.s.Bodies[j]
		if uint32(j) == i || !o.Live || !b.Collider.Interacts(o.Collider) {
			continue
		}
		if overlaps(b.Collider, b.Pos, o.Collider, o.Pos) {
			before := axis(o.Pos).Sub(axis(b.Pos)).Abs()
			after := axis(o.Pos).Sub(axis(at(allowed))).Abs()
			if before.Less(after) {
				continue
			}
			allowed = 0
			blocked = true
			continue
		}
		// Overlap along an axis-aligned path is an interval around the point
		// where the centers line up, so that point, clamped to the path, is
		// the one to test.
		reach := min(max((axis(o.Pos).Raw()-axis(b.Pos).Raw())*sign, 0), allowed)
		if !overlaps(b.Collider, at(reach), o.Collider, o.Pos) {
			continue
		}
		// Bisect in raw units: lo never overlaps, hi always does.
		lo, hi := int64(0), reach
		for hi-lo > 1 {
			mid := lo + (hi-lo)/2
			if overlaps(b.Collider, at(mid), o.Collider, o.Pos) {
				hi = mid
			} else {
				lo = mid
			}
		}
		allowed = lo
		blocked = true
	}

	got := maths.FromRaw(allowed * sign)
	if axisX {
		return maths.NewVector2(got, maths.Zero), blocked
	}
	return maths.NewVector2(maths.Zero, got), blocked
}

type span struct {
	idx uint32
	box AABB
}

// broadPhase finds candidate pairs with sort and sweep along x.
func (w *World) broadPhase() {
	spans := make([]span, 0, len(w.s.Bodies))
	for i, b := range w.s.Bodies {
		if b.Live {
			spans = append(spans, span{idx: uint32(i), box: boundsOf(b.Collider, b.Pos)})
		}
	}
	slices.SortFunc(spans, func(a, b span) int {
		if c := a.box.Min.X.Cmp(b.box.Min.X); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})

	pairs := w.s.Pairs[:0]
	for i := range spans {
		a := &w.s.Bodies[spans[i].idx]
		for j := i + 1; j < len(spans); j++ {
			if spans[i].box.Max.X.Less(spans[j].box.Min.X) {
				break
			}
			bb := &w.s.Bodies[spans[j].idx]
			if a.Kind == Static && bb.Kind == Static {
				continue
			}
			if !a.Collider.Interacts(bb.Collider) || !spans[i].box.Touches(spans[j].box) {
				continue
			}
			lo, hi := spans[i].idx, spans[j].idx
			if hi < lo {
				lo, hi = hi, lo
			}
			pairs = append(pairs, Pair{A: w.handle(lo), B: w.handle(hi)})
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.A.Index, b.A.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.B.Index, b.B.Index)
	})
	w.s.Pairs = pairs
}

// narrowPhase computes exact contacts for the broad phase pairs.
func (w *World) narrowPhase() {
	contacts := w.s.Contacts[:0]
	for _, p := range w.s.Pairs {
		a, b := &w.s.Bodies[p.A.Index], &w.s.Bodies[p.B.Index]
		normal, depth, ok := contact(a.Collider, a.Pos, b.Collider, b.Pos)
		if ok {
			contacts = append(contacts, Contact{A: p.A, B: p.B, Normal: normal, Depth: depth})
		}
	}
	w.s.Contacts = contacts
}

// solveJoints places every joint child at its offset from the parent, in
// joint creation order.
func (w *World) solveJoints() {
	for _, j := range w.s.Joints {
		a, errA := w.get(j.A)
		b, errB := w.get(j.B)
		if errA != nil || errB != nil {
			continue
		}
		target := a.Pos.Add(j.Offset)
		if target != b.Pos {
			b.Pos = target
			b.RestTicks = 0
			b.Sleeping = false
		}
	}
}
