package physics

import (
	"cmp"
	"slices"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// maxCellsPerBody caps how many grid cells a single collider occupies.
// Larger colliders go to the oversized list and are tested on every query.
const maxCellsPerBody = 64

type cellEntry struct {
	CX, CY int64
	Body   uint32
}

// grid is the query acceleration structure: a uniform grid of cells listing
// the bodies whose bounds cover them, sorted for binary search.
type grid struct {
	Cell      maths.Number
	Entries   []cellEntry
	Oversized []uint32
}

func (g grid) clone() grid {
	g.Entries = slices.Clone(g.Entries)
	g.Oversized = slices.Clone(g.Oversized)
	return g
}

func cmpCell(a, b cellEntry) int {
	if c := cmp.Compare(a.CX, b.CX); c != 0 {
		return c
	}
	if c := cmp.Compare(a.CY, b.CY); c != 0 {
		return c
	}
	return cmp.Compare(a.Body, b.Body)
}

// cellRange returns the inclusive cell coordinates covered by box.
func (g grid) cellRange(box AABB) (x0, y0, x1, y1 int64, ok bool) {
	c := g.Cell.Raw()
	if c <= 0 {
		return 0, 0, 0, 0, false
	}
	return floorDiv(box.Min.X.Raw(), c), floorDiv(box.Min.Y.Raw(), c),
		floorDiv(box.Max.X.Raw(), c), floorDiv(box.Max.Y.Raw(), c), true
}

// tooMany reports whether the cell range spans more than limit cells.
func tooMany(x0, y0, x1, y1 int64, limit int64) bool {
	w, h := x1-x0+1, y1-y0+1
	if w > limit || h > limit {
		return true
	}
	return w*h > limit
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (w *World) rebuildGrid() {
	g := &w.s.Grid
	g.Cell = w.s.Params.GridCell
	g.Entries = g.Entries[:0]
	g.Oversized = g.Oversized[:0]

	for i, b := range w.s.Bodies {
		if !b.Live {
			continue
		}
		x0, y0, x1, y1, ok := g.cellRange(boundsOf(b.Collider, b.Pos))
		if !ok || tooMany(x0, y0, x1, y1, maxCellsPerBody) {
			g.Oversized = append(g.Oversized, uint32(i))
			continue
		}
		for cx := x0; cx <= x1; cx++ {
			for cy := y0; cy <= y1; cy++ {
				g.Entries = append(g.Entries, cellEntry{CX: cx, CY: cy, Body: uint32(i)})
			}
		}
	}
	slices.SortFunc(g.Entries, cmpCell)
}

// candidates returns body indices whose cells intersect box, ascending and
// without duplicates. Callers still run the exact test.
func (w *World) candidates(box AABB) []uint32 {
	g := &w.s.Grid
	out := slices.Clone(g.Oversized)

	x0, y0, x1, y1, ok := g.cellRange(box)
	if !ok || tooMany(x0, y0, x1, y1, maxCellsPerBody*4) {
		// Huge query: scanning every body is cheaper than every cell.
		for i, b := range w.s.Bodies {
			if b.Live {
				out = append(out, uint32(i))
			}
		}
	} else {
		for cx := x0; cx <= x1; cx++ {
			for cy := y0; cy <= y1; cy++ {
				i, _ := slices.BinarySearchFunc(g.Entries, cellEntry{CX: cx, CY: cy}, cmpCell)
				for ; i < len(g.Entries) && g.Entries[i].CX == cx && g.Entries[i].CY == cy; i++ {
					out = append(out, g.Entries[i].Body)
				}
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// QueryAABB returns the bodies whose bounds touch box, in handle order.
func (w *World) QueryAABB(box AABB) []BodyHandle {
	var out []BodyHandle
	for _, i := range w.candidates(box) {
		b := &w.s.Bodies[i]
		if b.Live && boundsOf(b.Collider, b.Pos).Touches(box) {
			out = append(out, w.handle(i))
		}
	}
	return out
}

// QueryPoint returns the bodies whose shape contains p, in handle order.
func (w *World) QueryPoint(p maths.Vector2) []BodyHandle {
	var out []BodyHandle
	for _, i := range w.candidates(AABB{Min: p, Max: p}) {
		b := &w.s.Bodies[i]
		if !b.Live {
			continue
		}
		if containsPoint(b.Collider, b.Pos, p) {
			out = append(out, w.handle(i))
		}
	}
	return out
}

func containsPoint(c Collider, pos, p maths.Vector2) bool {
	switch c.Shape {
	case ShapeCuboid:
		return boundsOf(c, pos).ContainsPoint(p)
	case ShapeBall:
		d := p.Sub(pos)
		return !c.Size.X.Mul(c.Size.X).Less(d.Dot(d))
	default:
		return false
	}
}
