package ecs

import (
	"fmt"
	"reflect"
	"slices"
)

// AnyStore provides type-erased operations so the World can manage every
// store uniformly for despawning and snapshots.
type AnyStore interface {
	Name() string
	TypeName() string
	Has(e Entity) bool
	Remove(e Entity) bool
	Len() int

	snapshot() StoreSnapshot
	check(StoreSnapshot) error
	restore(StoreSnapshot)
}

// Store holds every component of type T, kept sorted by entity so iteration
// order is the same on every peer. T must be a plain value type: snapshots
// copy values shallowly.
type Store[T any] struct {
	name     string
	entities []Entity
	values   []T
}

func newStore[T any](name string) *Store[T] {
	return &Store[T]{
		name:     name,
		entities: make([]Entity, 0, 16),
		values:   make([]T, 0, 16),
	}
}

// Name returns the name the store was registered under.
func (s *Store[T]) Name() string { return s.name }

// TypeName returns the Go type of the stored component.
func (s *Store[T]) TypeName() string {
	return reflect.TypeFor[T]().String()
}

func (s *Store[T]) find(e Entity) (int, bool) {
	return slices.BinarySearch(s.entities, e)
}

// Set inserts or updates the component of e.
func (s *Store[T]) Set(e Entity, v T) {
	i, ok := s.find(e)
	if ok {
		s.values[i] = v
		return
	}
	s.entities = slices.Insert(s.entities, i, e)
	s.values = slices.Insert(s.values, i, v)
}

// Get returns the component of e.
func (s *Store[T]) Get(e Entity) (T, bool) {
	if i, ok := s.find(e); ok {
		return s.values[i], true
	}
	var zero T
	return zero, false
}

// Ref returns a pointer to the component of e for in-place updates. The
// pointer is invalidated by the next Set or Remove on this store.
func (s *Store[T]) Ref(e Entity) *T {
	if i, ok := s.find(e); ok {
		return &s.values[i]
	}
	return nil
}

// Has checks if e has this component.
func (s *Store[T]) Has(e Entity) bool {
	_, ok := s.find(e)
	return ok
}

// Remove deletes the component of e and reports whether it existed.
func (s *Store[T]) Remove(e Entity) bool {
	i, ok := s.find(e)
	if !ok {
		return false
	}
	s.entities = slices.Delete(s.entities, i, i+1)
	s.values = slices.Delete(s.values, i, i+1)
	return true
}

// Len returns the number of entities with this component.
func (s *Store[T]) Len() int { return len(s.entities) }

// Entities returns a copy of the entities holding this component, ascending.
func (s *Store[T]) Entities() []Entity {
	return slices.Clone(s.entities)
}

// Each calls fn for every component in ascending entity order. fn may
// modify the component through the pointer but must not add or remove
// components of this store.
func (s *Store[T]) Each(fn func(e Entity, v *T)) {
	for i := range s.entities {
		fn(s.entities[i], &s.values[i])
	}
}

func (s *Store[T]) snapshot() StoreSnapshot {
	return StoreSnapshot{
		Name:     s.name,
		Type:     s.TypeName(),
		Entities: slices.Clone(s.entities),
		Values:   slices.Clone(s.values),
	}
}

func (s *Store[T]) check(snap StoreSnapshot) error {
	values, ok := snap.Values.([]T)
	if !ok || len(values) != len(snap.Entities) {
		return fmt.Errorf("%w: store %q holds %T", ErrSchemaMismatch, s.name, snap.Values)
	}
	return nil
}

// restore must only be called after check succeeded.
func (s *Store[T]) restore(snap StoreSnapshot) {
	s.entities = slices.Clone(snap.Entities)
	s.values = slices.Clone(snap.Values.([]T))
}

// Each2 calls fn for every entity holding both components, in ascending
// entity order.
func Each2[A, B any](a *Store[A], b *Store[B], fn func(e Entity, a *A, b *B)) {
	for i, e := range a.entities {
		if j, ok := b.find(e); ok {
			fn(e, &a.values[i], &b.values[j])
		}
	}
}
