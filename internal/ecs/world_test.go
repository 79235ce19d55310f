package ecs

import (
	"errors"
	"slices"
	"testing"
)

type position struct{ X, Y int }

type health struct{ HP int }

func TestSpawnIsMonotonic(t *testing.T) {
	w := NewWorld()
	a, b := w.Spawn(), w.Spawn()
	if a == 0 || b <= a {
		t.Fatalf("entities %d, %d not increasing from 1", a, b)
	}
	w.Despawn(a)
	if c := w.Spawn(); c <= b {
		t.Errorf("entity %d reused after despawn", c)
	}
}

func TestStoreOrderedIteration(t *testing.T) {
	w := NewWorld()
	pos := MustRegister[position](w, "position")

	es := []Entity{w.Spawn(), w.Spawn(), w.Spawn()}
	// Insert out of order.
	pos.Set(es[2], position{X: 3})
	pos.Set(es[0], position{X: 1})
	pos.Set(es[1], position{X: 2})

	var seen []int
	pos.Each(func(e Entity, p *position) {
		seen = append(seen, p.X)
	})
	if !slices.Equal(seen, []int{1, 2, 3}) {
		t.Errorf("iteration order = %v, expected [1 2 3]", seen)
	}

	if !slices.IsSorted(pos.Entities()) {
		t.Error("Entities() not sorted")
	}
}

func TestStoreSetGetRemove(t *testing.T) {
	w := NewWorld()
	hp := MustRegister[health](w, "health")
	e := w.Spawn()

	if _, ok := hp.Get(e); ok {
		t.Fatal("component present before Set")
	}
	hp.Set(e, health{HP: 10})
	hp.Ref(e).HP -= 3
	if v, _ := hp.Get(e); v.HP != 7 {
		t.Errorf("HP = %d, expected 7", v.HP)
	}
	if !hp.Remove(e) {
		t.Error("Remove should report existing component")
	}
	if hp.Remove(e) {
		t.Error("second Remove should be a no-op")
	}
	if hp.Ref(e) != nil {
		t.Error("Ref should be nil after Remove")
	}
}

func TestEach2(t *testing.T) {
	w := NewWorld()
	pos := MustRegister[position](w, "position")
	hp := MustRegister[health](w, "health")

	a, b, c := w.Spawn(), w.Spawn(), w.Spawn()
	pos.Set(a, position{})
	pos.Set(b, position{})
	hp.Set(b, health{HP: 1})
	hp.Set(c, health{HP: 1})

	var joined []Entity
	Each2(pos, hp, func(e Entity, _ *position, _ *health) {
		joined = append(joined, e)
	})
	if !slices.Equal(joined, []Entity{b}) {
		t.Errorf("Each2 visited %v, expected [%d]", joined, b)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	w := NewWorld()
	MustRegister[position](w, "position")
	if _, err := Register[health](w, "position"); err == nil {
		t.Error("duplicate store name should fail")
	}
}

func TestDespawnQueue(t *testing.T) {
	w := NewWorld()
	pos := MustRegister[position](w, "position")
	e := w.Spawn()
	pos.Set(e, position{X: 1})

	w.Despawn(e)
	w.Despawn(e) // idempotent

	if w.Alive(e) || pos.Has(e) {
		t.Error("despawned entity still present")
	}
	if got := w.DrainDespawned(); !slices.Equal(got, []Entity{e}) {
		t.Errorf("DrainDespawned = %v, expected [%d]", got, e)
	}
	if got := w.DrainDespawned(); len(got) != 0 {
		t.Errorf("queue not cleared: %v", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	w := NewWorld()
	pos := MustRegister[position](w, "position")
	e := w.Spawn()
	pos.Set(e, position{X: 5})

	snap := w.Snapshot()

	pos.Ref(e).X = 99
	extra := w.Spawn()
	pos.Set(extra, position{})

	if err := w.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if v, _ := pos.Get(e); v.X != 5 {
		t.Errorf("X = %d after restore, expected 5", v.X)
	}
	if w.Alive(extra) || pos.Has(extra) {
		t.Error("entity spawned after snapshot survived restore")
	}
	// The allocator is restored too, so the next spawn repeats.
	if again := w.Spawn(); again != extra {
		t.Errorf("Spawn after restore = %d, expected %d", again, extra)
	}

	// Mutating live state must not reach the snapshot.
	pos.Ref(e).X = 1
	if err := w.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if v, _ := pos.Get(e); v.X != 5 {
		t.Error("snapshot shares storage with the world")
	}
}

func TestRestoreSchemaMismatch(t *testing.T) {
	src := NewWorld()
	MustRegister[position](src, "position")
	snap := src.Snapshot()

	tests := []struct {
		name  string
		setup func(*World)
	}{
		{"extra store", func(w *World) {
			MustRegister[position](w, "position")
			MustRegister[health](w, "health")
		}},
		{"renamed store", func(w *World) { MustRegister[position](w, "pos") }},
		{"retyped store", func(w *World) { MustRegister[health](w, "position") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWorld()
			tc.setup(w)
			live := w.Spawn()
			if err := w.Restore(snap); !errors.Is(err, ErrSchemaMismatch) {
				t.Fatalf("Restore error = %v, expected ErrSchemaMismatch", err)
			}
			if !w.Alive(live) {
				t.Error("failed restore modified the world")
			}
		})
	}
}
