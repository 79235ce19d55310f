package engine

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/physics"
)

// ErrSchemaMismatch is returned by Load when a state was taken from a world
// with different registered stores. The session must resynchronise.
var ErrSchemaMismatch = ecs.ErrSchemaMismatch

// State is the complete rollback state after Tick ticks have run.
// A State is immutable once taken; Load copies out of it.
type State struct {
	Tick    int64          `msgpack:"tick"`
	World   ecs.Snapshot   `msgpack:"world"`
	Physics *physics.World `msgpack:"physics"`
}

// Encode serialises the state deterministically.
func (s State) Encode() ([]byte, error) {
	if s.Physics == nil {
		return nil, errors.New("engine: encode state without physics world")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("engine: encode state at tick %d: %w", s.Tick, err)
	}
	return buf.Bytes(), nil
}

// Checksum returns the FNV-1a hash of the encoded state. Two peers with the
// same checksum for a tick have simulated it identically.
func (s State) Checksum() (uint64, error) {
	data, err := s.Encode()
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64(), nil
}
