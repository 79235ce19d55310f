package transform

import (
	"sync"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

// Item is one rendered entity.
type Item struct {
	Entity uint32
	Pose   Pose
	// Player is the owning player slot, or -1 for scenery.
	Player int
}

// OutlineKind selects the primitive used to draw a collider outline.
type OutlineKind uint8

const (
	OutlineBall OutlineKind = iota
	OutlineCuboid
)

// Outline is a collider outline in world coordinates.
type Outline struct {
	Kind        OutlineKind
	Center      maths.Vector2
	HalfExtents maths.Vector2
	Sleeping    bool
}

// Frame is everything the renderer needs to draw one tick.
type Frame struct {
	Tick     int64
	Items    []Item
	Outlines []Outline
	Checksum uint64
	// Rollbacks counts resimulations since the session started.
	Rollbacks int
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	out := f
	out.Items = append([]Item(nil), f.Items...)
	out.Outlines = append([]Outline(nil), f.Outlines...)
	return out
}

// Buffer is the single artifact shared between the simulation goroutine and
// readers such as the renderer. The simulation publishes whole frames; a
// reader never observes a frame from the middle of a tick or resimulation.
type Buffer struct {
	mu      sync.RWMutex
	frame   Frame
	version uint64
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Publish replaces the current frame. The buffer keeps its own copy.
func (b *Buffer) Publish(f Frame) {
	f = f.Clone()
	b.mu.Lock()
	b.frame = f
	b.version++
	b.mu.Unlock()
}

// Read returns a copy of the latest frame and its publish counter.
func (b *Buffer) Read() (Frame, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame.Clone(), b.version
}
