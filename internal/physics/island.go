package physics

import "slices"

// updateIslands groups moving bodies connected by contacts or joints and
// puts an island to sleep once every member has rested long enough. Static
// bodies never join islands, so a floor does not merge everything on it.
func (w *World) updateIslands() {
	parent := make([]uint32, len(w.s.Bodies))
	for i := range parent {
		parent[i] = uint32(i)
	}
	var find func(uint32) uint32
	find = func(x uint32) uint32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b uint32) {
		ra, rb := find(a), find(b)
		switch {
		case ra < rb:
			parent[rb] = ra
		case rb < ra:
			parent[ra] = rb
		}
	}
	moving := func(idx uint32) bool {
		b := &w.s.Bodies[idx]
		return b.Live && b.Kind != Static
	}

	for _, c := range w.s.Contacts {
		if moving(c.A.Index) && moving(c.B.Index) {
			union(c.A.Index, c.B.Index)
		}
	}
	for _, j := range w.s.Joints {
		if moving(j.A.Index) && moving(j.B.Index) {
			union(j.A.Index, j.B.Index)
		}
	}

	// An island rests only if all its members do.
	awake := make(map[uint32]bool)
	for i := range w.s.Bodies {
		b := &w.s.Bodies[i]
		if !b.Live {
			continue
		}
		b.Island = find(uint32(i))
		if b.Kind == Static {
			continue
		}
		if w.s.Params.SleepTicks <= 0 || b.RestTicks < w.s.Params.SleepTicks {
			awake[b.Island] = true
		}
	}
	for i := range w.s.Bodies {
		b := &w.s.Bodies[i]
		if b.Live && b.Kind != Static {
			b.Sleeping = !awake[b.Island]
		}
	}
}

// Islands returns the handles of each island of moving bodies, ordered by
// their lowest handle index.
func (w *World) Islands() [][]BodyHandle {
	var out [][]BodyHandle
	index := make(map[uint32]int)
	for i, b := range w.s.Bodies {
		if !b.Live || b.Kind == Static {
			continue
		}
		k, ok := index[b.Island]
		if !ok {
			k = len(out)
			index[b.Island] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], w.handle(uint32(i)))
	}
	for _, isl := range out {
		slices.SortFunc(isl, func(a, b BodyHandle) int { return int(a.Index) - int(b.Index) })
	}
	return out
}
