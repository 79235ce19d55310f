// Package rollback keeps a bounded window of tick snapshots and the input
// history, and rewinds and replays the simulation when inputs are corrected.
package rollback

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/core"
)

// ErrOutsideWindow is returned for a tick whose snapshot is no longer, or
// not yet, retained. Nothing is modified; the caller has to resynchronise
// with a full state transfer instead.
var ErrOutsideWindow = errors.New("rollback: tick outside the prediction window")

// ErrMissingInput is returned when a resimulation reaches a tick with no
// recorded input.
var ErrMissingInput = errors.New("rollback: no input recorded for tick")

// State is a saved simulation state.
type State interface {
	Checksum() (uint64, error)
}

// Simulator is the simulation being rolled back.
type Simulator[S State] interface {
	// Tick is the number of the next tick to simulate.
	Tick() int64
	Save() S
	Load(S) error
	Advance(inputs []core.PlayerInput) error
}

// Resumer is implemented by simulators that can take the snapshot the
// store just saved as the state to fall back to when a tick fails, instead
// of copying their state once more.
type Resumer[S State] interface {
	AdvanceFrom(before S, inputs []core.PlayerInput) error
}

// Snapshot is the state before tick Tick ran. It is immutable.
type Snapshot[S State] struct {
	Tick     int64
	State    S
	Checksum uint64
}

// Store retains the snapshots of the most recent window+1 ticks, so any of
// the last window ticks can be rewound.
type Store[S State] struct {
	sim       Simulator[S]
	window    int
	ring      []Snapshot[S]
	filled    []bool
	history   *History
	rollbacks int
	log       *log.Logger
}

// NewStore creates a store over sim. window is the maximum prediction window
// in ticks and must be positive.
func NewStore[S State](sim Simulator[S], window, players int, logger *log.Logger) *Store[S] {
	if window <= 0 {
		panic(fmt.Sprintf("rollback: window must be positive, got %d", window))
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store[S]{
		sim:     sim,
		window:  window,
		ring:    make([]Snapshot[S], window+1),
		filled:  make([]bool, window+1),
		history: NewHistory(players),
		log:     logger,
	}
}

// Window returns the maximum prediction window.
func (s *Store[S]) Window() int { return s.window }

// History returns the recorded inputs.
func (s *Store[S]) History() *History { return s.history }

// Rollbacks returns the number of completed resimulations.
func (s *Store[S]) Rollbacks() int { return s.rollbacks }

func (s *Store[S]) slot(tick int64) int {
	return int(tick % int64(len(s.ring)))
}

// Save snapshots the current state under the simulator's tick, evicting the
// snapshot window+1 ticks older.
func (s *Store[S]) Save() (Snapshot[S], error) {
	tick := s.sim.Tick()
	st := s.sim.Save()
	sum, err := st.Checksum()
	if err != nil {
		return Snapshot[S]{}, fmt.Errorf("rollback: snapshot tick %d: %w", tick, err)
	}
	snap := Snapshot[S]{Tick: tick, State: st, Checksum: sum}
	i := s.slot(tick)
	s.ring[i], s.filled[i] = snap, true
	return snap, nil
}

// Load returns the retained snapshot of tick.
func (s *Store[S]) Load(tick int64) (Snapshot[S], error) {
	if tick >= 0 {
		i := s.slot(tick)
		if s.filled[i] && s.ring[i].Tick == tick {
			return s.ring[i], nil
		}
	}
	lo, hi, ok := s.Retained()
	if !ok {
		return Snapshot[S]{}, fmt.Errorf("%w: tick %d, nothing retained", ErrOutsideWindow, tick)
	}
	return Snapshot[S]{}, fmt.Errorf("%w: tick %d, retained %d..%d", ErrOutsideWindow, tick, lo, hi)
}

// Retained returns the oldest and newest retained ticks.
func (s *Store[S]) Retained() (lo, hi int64, ok bool) {
	for i, f := range s.filled {
		if !f {
			continue
		}
		t := s.ring[i].Tick
		if !ok {
			lo, hi, ok = t, t, true
			continue
		}
		lo, hi = min(lo, t), max(hi, t)
	}
	return lo, hi, ok
}

// Restore loads the snapshot of tick into the simulator. Snapshots of later
// ticks belong to the abandoned timeline and are dropped. A schema mismatch
// from the simulator is fatal for the session.
func (s *Store[S]) Restore(tick int64) error {
	snap, err := s.Load(tick)
	if err != nil {
		return err
	}
	if err := s.sim.Load(snap.State); err != nil {
		return fmt.Errorf("rollback: restore tick %d: %w", tick, err)
	}
	for i := range s.ring {
		if s.filled[i] && s.ring[i].Tick > tick {
			s.filled[i] = false
		}
	}
	return nil
}

// Advance snapshots the current tick, records its inputs and runs it.
func (s *Store[S]) Advance(inputs []core.PlayerInput) error {
	tick := s.sim.Tick()
	snap, err := s.Save()
	if err != nil {
		return err
	}
	if err := s.history.Record(tick, inputs); err != nil {
		return err
	}
	if err := s.advance(snap.State, inputs); err != nil {
		s.history.Truncate(tick)
		return err
	}
	return nil
}

// advance runs one tick from cur, the state the simulator is in.
func (s *Store[S]) advance(cur S, inputs []core.PlayerInput) error {
	if r, ok := s.sim.(Resumer[S]); ok {
		return r.AdvanceFrom(cur, inputs)
	}
	return s.sim.Advance(inputs)
}

// Resimulate rewinds to the snapshot of from and runs every tick up to to,
// using corrected inputs where given and the recorded ones otherwise. The
// replay is all or nothing: on failure the simulator, the snapshots and the
// history are left as they were.
func (s *Store[S]) Resimulate(from, to int64, corrected Corrections) error {
	if to < from {
		return fmt.Errorf("rollback: resimulate from %d to %d", from, to)
	}
	snap, err := s.Load(from)
	if err != nil {
		return err
	}
	inputs := make([][]core.PlayerInput, 0, to-from)
	for t := from; t < to; t++ {
		in, ok := s.history.At(t)
		if !ok {
			return fmt.Errorf("%w: %d", ErrMissingInput, t)
		}
		inputs = append(inputs, corrected.apply(t, in))
	}

	before := s.sim.Save()
	ring, filled := slices.Clone(s.ring), slices.Clone(s.filled)
	abort := func(err error) error {
		s.ring, s.filled = ring, filled
		if lerr := s.sim.Load(before); lerr != nil {
			return errors.Join(err, lerr)
		}
		return err
	}

	if err := s.sim.Load(snap.State); err != nil {
		return abort(fmt.Errorf("rollback: restore tick %d: %w", from, err))
	}
	cur := snap.State
	for k, in := range inputs {
		t := from + int64(k)
		if k > 0 {
			saved, err := s.Save()
			if err != nil {
				return abort(err)
			}
			cur = saved.State
		}
		if err := s.advance(cur, in); err != nil {
			return abort(fmt.Errorf("rollback: resimulate tick %d: %w", t, err))
		}
	}

	for k, in := range inputs {
		if err := s.history.Record(from+int64(k), in); err != nil {
			return abort(err)
		}
	}
	for i := range s.ring {
		if s.filled[i] && s.ring[i].Tick > to {
			s.filled[i] = false
		}
	}
	s.rollbacks++
	s.log.Debug("resimulated", "from", from, "to", to, "ticks", to-from, "corrected", len(corrected))
	return nil
}
