package physics

import (
	"fmt"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min maths.Vector2
	Max maths.Vector2
}

func boundsOf(c Collider, pos maths.Vector2) AABB {
	h := c.HalfExtents()
	return AABB{Min: pos.Sub(h), Max: pos.Add(h)}
}

// Touches reports whether the boxes overlap or share an edge.
func (a AABB) Touches(b AABB) bool {
	return !a.Max.X.Less(b.Min.X) && !b.Max.X.Less(a.Min.X) &&
		!a.Max.Y.Less(b.Min.Y) && !b.Max.Y.Less(a.Min.Y)
}

// ContainsPoint reports whether p lies inside or on the box.
func (a AABB) ContainsPoint(p maths.Vector2) bool {
	return !p.X.Less(a.Min.X) && !a.Max.X.Less(p.X) &&
		!p.Y.Less(a.Min.Y) && !a.Max.Y.Less(p.Y)
}

// overlaps reports strict interpenetration: touching shapes do not overlap.
func overlaps(a Collider, pa maths.Vector2, b Collider, pb maths.Vector2) bool {
	switch {
	case a.Shape == ShapeCuboid && b.Shape == ShapeCuboid:
		d := pb.Sub(pa).Abs()
		ext := a.Size.Add(b.Size)
		return d.X.Less(ext.X) && d.Y.Less(ext.Y)
	case a.Shape == ShapeBall && b.Shape == ShapeBall:
		r := a.Size.X.Add(b.Size.X)
		d := pb.Sub(pa)
		return d.Dot(d).Less(r.Mul(r))
	case a.Shape == ShapeBall && b.Shape == ShapeCuboid:
		return ballBoxDistSq(pa, b, pb).Less(a.Size.X.Mul(a.Size.X))
	case a.Shape == ShapeCuboid && b.Shape == ShapeBall:
		return ballBoxDistSq(pb, a, pa).Less(b.Size.X.Mul(b.Size.X))
	default:
		panic(fmt.Sprintf("physics: no overlap test for %s/%s", a.Shape, b.Shape))
	}
}

// ballBoxDistSq is the squared distance from a point to a box.
func ballBoxDistSq(p maths.Vector2, box Collider, pos maths.Vector2) maths.Number {
	b := boundsOf(box, pos)
	closest := maths.NewVector2(p.X.Clamp(b.Min.X, b.Max.X), p.Y.Clamp(b.Min.Y, b.Max.Y))
	d := p.Sub(closest)
	return d.Dot(d)
}

// contact computes the narrow phase result for two shapes. ok is false when
// they are separated.
func contact(a Collider, pa maths.Vector2, b Collider, pb maths.Vector2) (normal maths.Vector2, depth maths.Number, ok bool) {
	switch {
	case a.Shape == ShapeCuboid && b.Shape == ShapeCuboid:
		return boxBox(a, pa, b, pb)
	case a.Shape == ShapeBall && b.Shape == ShapeBall:
		return ballBall(a.Size.X, pa, b.Size.X, pb)
	case a.Shape == ShapeBall && b.Shape == ShapeCuboid:
		n, d, ok := ballBox(a.Size.X, pa, b, pb)
		return n.Neg(), d, ok
	case a.Shape == ShapeCuboid && b.Shape == ShapeBall:
		return ballBox(b.Size.X, pb, a, pa)
	default:
		panic(fmt.Sprintf("physics: no contact test for %s/%s", a.Shape, b.Shape))
	}
}

func boxBox(a Collider, pa maths.Vector2, b Collider, pb maths.Vector2) (maths.Vector2, maths.Number, bool) {
	d := pb.Sub(pa)
	px := a.Size.X.Add(b.Size.X).Sub(d.X.Abs())
	py := a.Size.Y.Add(b.Size.Y).Sub(d.Y.Abs())
	if px.Sign() < 0 || py.Sign() < 0 {
		return maths.Vector2{}, maths.Zero, false
	}
	// Resolve along the axis of least penetration; ties prefer x.
	if !py.Less(px) {
		return maths.NewVector2(signOne(d.X), maths.Zero), px, true
	}
	return maths.NewVector2(maths.Zero, signOne(d.Y)), py, true
}

func ballBall(ra maths.Number, pa maths.Vector2, rb maths.Number, pb maths.Vector2) (maths.Vector2, maths.Number, bool) {
	d := pb.Sub(pa)
	r := ra.Add(rb)
	distSq := d.Dot(d)
	if r.Mul(r).Less(distSq) {
		return maths.Vector2{}, maths.Zero, false
	}
	dist, err := distSq.Sqrt()
	if err != nil || dist.IsZero() {
		return maths.V2(1, 0), r, true
	}
	nx, _ := d.X.Div(dist)
	ny, _ := d.Y.Div(dist)
	return maths.NewVector2(nx, ny), maths.Max(maths.Zero, r.Sub(dist)), true
}

// ballBox returns the contact with the normal pointing from the box to the
// ball.
func ballBox(r maths.Number, pc maths.Vector2, box Collider, pb maths.Vector2) (maths.Vector2, maths.Number, bool) {
	b := boundsOf(box, pb)
	if b.ContainsPoint(pc) {
		// Center inside: push out through the nearest face.
		d := pc.Sub(pb)
		px := box.Size.X.Sub(d.X.Abs())
		py := box.Size.Y.Sub(d.Y.Abs())
		if !py.Less(px) {
			return maths.NewVector2(signOne(d.X), maths.Zero), px.Add(r), true
		}
		return maths.NewVector2(maths.Zero, signOne(d.Y)), py.Add(r), true
	}
	closest := maths.NewVector2(pc.X.Clamp(b.Min.X, b.Max.X), pc.Y.Clamp(b.Min.Y, b.Max.Y))
	d := pc.Sub(closest)
	distSq := d.Dot(d)
	if r.Mul(r).Less(distSq) {
		return maths.Vector2{}, maths.Zero, false
	}
	dist, err := distSq.Sqrt()
	if err != nil || dist.IsZero() {
		return maths.V2(0, 1), r, true
	}
	nx, _ := d.X.Div(dist)
	ny, _ := d.Y.Div(dist)
	return maths.NewVector2(nx, ny), maths.Max(maths.Zero, r.Sub(dist)), true
}

func signOne(n maths.Number) maths.Number {
	if n.Sign() < 0 {
		return maths.FromInt(-1)
	}
	return maths.One
}
