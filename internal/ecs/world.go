// Package ecs is a small entity arena with typed component stores. Every
// store that takes part in rollback is registered by name, and the set of
// registrations forms the schema a snapshot must match to be restored.
package ecs

import (
	"errors"
	"fmt"
	"slices"
)

// Entity identifies a simulated object. IDs are allocated in increasing
// order and never reused within a session; zero is never a live entity.
type Entity uint32

// ErrSchemaMismatch is returned when a snapshot does not match the set of
// registered stores. It means the build or game setup differs and the
// session cannot continue.
var ErrSchemaMismatch = errors.New("ecs: snapshot schema mismatch")

// World owns the entity arena and the registered stores.
type World struct {
	next      Entity
	alive     []Entity
	despawned []Entity
	stores    []AnyStore
	byName    map[string]AnyStore
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		next:   1,
		byName: make(map[string]AnyStore),
	}
}

// Register adds a store for T under name. Registration order is part of
// the snapshot schema, so every peer must register the same stores in the
// same order.
func Register[T any](w *World, name string) (*Store[T], error) {
	if _, dup := w.byName[name]; dup {
		return nil, fmt.Errorf("ecs: store %q already registered", name)
	}
	s := newStore[T](name)
	w.stores = append(w.stores, s)
	w.byName[name] = s
	return s, nil
}

// MustRegister is Register for setup code where a duplicate is a bug.
func MustRegister[T any](w *World, name string) *Store[T] {
	s, err := Register[T](w, name)
	if err != nil {
		panic(err)
	}
	return s
}

// Spawn allocates a new entity.
func (w *World) Spawn() Entity {
	e := w.next
	w.next++
	w.alive = append(w.alive, e) // ascending by construction
	return e
}

// Alive reports whether e has been spawned and not yet despawned.
func (w *World) Alive(e Entity) bool {
	_, ok := slices.BinarySearch(w.alive, e)
	return ok
}

// Entities returns every live entity, ascending.
func (w *World) Entities() []Entity {
	return slices.Clone(w.alive)
}

// Despawn removes e and all of its components. The entity is queued so
// systems owning external resources (physics bodies) can release them.
// Despawning an unknown or already removed entity does nothing.
func (w *World) Despawn(e Entity) {
	i, ok := slices.BinarySearch(w.alive, e)
	if !ok {
		return
	}
	w.alive = slices.Delete(w.alive, i, i+1)
	for _, s := range w.stores {
		s.Remove(e)
	}
	w.despawned = append(w.despawned, e)
}

// DrainDespawned returns and clears the despawn queue.
func (w *World) DrainDespawned() []Entity {
	out := w.despawned
	w.despawned = nil
	return out
}

// Schema lists the registered stores as "name:type", in registration order.
func (w *World) Schema() []string {
	out := make([]string, len(w.stores))
	for i, s := range w.stores {
		out[i] = s.Name() + ":" + s.TypeName()
	}
	return out
}

// StoreSnapshot is the copied content of one store.
type StoreSnapshot struct {
	Name     string   `msgpack:"name"`
	Type     string   `msgpack:"type"`
	Entities []Entity `msgpack:"entities"`
	Values   any      `msgpack:"values"`
}

// Snapshot is an immutable copy of the world.
type Snapshot struct {
	Next      Entity          `msgpack:"next"`
	Alive     []Entity        `msgpack:"alive"`
	Despawned []Entity        `msgpack:"despawned"`
	Stores    []StoreSnapshot `msgpack:"stores"`
}

// Snapshot copies the arena and every registered store.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Next:      w.next,
		Alive:     slices.Clone(w.alive),
		Despawned: slices.Clone(w.despawned),
		Stores:    make([]StoreSnapshot, len(w.stores)),
	}
	for i, s := range w.stores {
		snap.Stores[i] = s.snapshot()
	}
	return snap
}

// Restore replaces the world content with snap. The schema is checked in
// full before anything is modified, so a mismatch leaves the world intact.
func (w *World) Restore(snap Snapshot) error {
	if len(snap.Stores) != len(w.stores) {
		return fmt.Errorf("%w: snapshot has %d stores, world has %d", ErrSchemaMismatch, len(snap.Stores), len(w.stores))
	}
	for i, s := range w.stores {
		got := snap.Stores[i]
		if got.Name != s.Name() || got.Type != s.TypeName() {
			return fmt.Errorf("%w: store %d is %s:%s, expected %s:%s",
				ErrSchemaMismatch, i, got.Name, got.Type, s.Name(), s.TypeName())
		}
	}

	for i, s := range w.stores {
		if err := s.check(snap.Stores[i]); err != nil {
			return err
		}
	}
	for i, s := range w.stores {
		s.restore(snap.Stores[i])
	}

	w.next = snap.Next
	w.alive = slices.Clone(snap.Alive)
	w.despawned = slices.Clone(snap.Despawned)
	return nil
}
