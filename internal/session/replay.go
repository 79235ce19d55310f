package session

import (
	"fmt"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/engine"
)

// Replay advances a freshly set up engine through recorded inputs, one row
// per tick, and returns the final state checksum. onTick, if set, is called
// after every tick.
func Replay(eng *engine.Engine, inputs [][]core.InputRecord, onTick func(tick int64)) (uint64, error) {
	if eng.Tick() != 0 {
		return 0, fmt.Errorf("session: replay needs a fresh engine, at tick %d", eng.Tick())
	}
	row := make([]core.PlayerInput, eng.Players())
	for t, recs := range inputs {
		if len(recs) != len(row) {
			return 0, fmt.Errorf("session: replay tick %d: %d inputs for %d players", t, len(recs), len(row))
		}
		for p, r := range recs {
			row[p] = core.PlayerInput{Record: r, Status: core.StatusConfirmed}
		}
		if err := eng.Advance(row); err != nil {
			return 0, err
		}
		if onTick != nil {
			onTick(eng.Tick())
		}
	}
	return eng.Checksum()
}

// Recording returns the inputs every simulated tick used, one row per tick.
func (s *Session) Recording() [][]core.InputRecord {
	return s.store.History().Records()
}
