package rollback

import (
	"fmt"
	"slices"

	"github.com/vovakirdan/rollback-engine/internal/core"
)

// History records the inputs every tick was simulated with, starting at
// tick zero. Replays and resimulation read it back.
type History struct {
	players int
	ticks   [][]core.PlayerInput
}

// NewHistory creates an empty history for players.
func NewHistory(players int) *History {
	return &History{players: players}
}

// Len returns the number of recorded ticks.
func (h *History) Len() int64 {
	return int64(len(h.ticks))
}

// Record stores the inputs of tick. A tick may be recorded again, which
// replaces it, or appended right after the last one.
func (h *History) Record(tick int64, inputs []core.PlayerInput) error {
	if len(inputs) != h.players {
		return fmt.Errorf("rollback: tick %d: %d inputs for %d players", tick, len(inputs), h.players)
	}
	switch {
	case tick < 0 || tick > h.Len():
		return fmt.Errorf("rollback: record tick %d with %d ticks recorded", tick, h.Len())
	case tick == h.Len():
		h.ticks = append(h.ticks, slices.Clone(inputs))
	default:
		h.ticks[tick] = slices.Clone(inputs)
	}
	return nil
}

// At returns a copy of the inputs of tick.
func (h *History) At(tick int64) ([]core.PlayerInput, bool) {
	if tick < 0 || tick >= h.Len() {
		return nil, false
	}
	return slices.Clone(h.ticks[tick]), true
}

// Truncate forgets every tick from tick on.
func (h *History) Truncate(tick int64) {
	if tick >= 0 && tick < h.Len() {
		h.ticks = h.ticks[:tick]
	}
}

// Records returns the raw input records, one row per tick.
func (h *History) Records() [][]core.InputRecord {
	out := make([][]core.InputRecord, len(h.ticks))
	for i, row := range h.ticks {
		out[i] = make([]core.InputRecord, len(row))
		for p, in := range row {
			out[i][p] = in.Record
		}
	}
	return out
}

// Corrections maps a player to the inputs that replace the recorded ones,
// by tick.
type Corrections map[int]map[int64]core.PlayerInput

// Set corrects the input of player at tick.
func (c Corrections) Set(player int, tick int64, in core.PlayerInput) {
	byTick, ok := c[player]
	if !ok {
		byTick = make(map[int64]core.PlayerInput)
		c[player] = byTick
	}
	byTick[tick] = in
}

// ConfirmedFrom builds corrections from per-player record slices whose
// entry k is the confirmed input of tick from+k.
func ConfirmedFrom(from int64, records map[int][]core.InputRecord) Corrections {
	c := make(Corrections, len(records))
	for p, recs := range records {
		for k, r := range recs {
			c.Set(p, from+int64(k), core.PlayerInput{Record: r, Status: core.StatusConfirmed})
		}
	}
	return c
}

// apply patches the corrected inputs of tick into inputs.
func (c Corrections) apply(tick int64, inputs []core.PlayerInput) []core.PlayerInput {
	for p, byTick := range c {
		if p < 0 || p >= len(inputs) {
			continue
		}
		if in, ok := byTick[tick]; ok {
			inputs[p] = in
		}
	}
	return inputs
}
