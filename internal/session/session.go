// Package session drives the simulation for the external collaborators: it
// assembles the per-player inputs of each tick (local, confirmed remote or
// predicted), triggers rollbacks when remote inputs are corrected and
// publishes presentation frames once a tick or resimulation has completed.
package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/engine"
	"github.com/vovakirdan/rollback-engine/internal/rollback"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

// Mode selects how remote players and checks are handled.
type Mode uint8

const (
	// ModeLocal runs every player from local input.
	ModeLocal Mode = iota
	// ModeSyncTest rolls back CheckDistance ticks after every tick and
	// verifies the resimulated state matches.
	ModeSyncTest
	// ModeRemote predicts remote players by repeating their last confirmed
	// input and rolls back when the real input arrives.
	ModeRemote
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeSyncTest:
		return "synctest"
	case ModeRemote:
		return "remote"
	default:
		return fmt.Sprintf("mode(%d)", m)
	}
}

// ParseMode converts a mode name.
func ParseMode(s string) (Mode, error) {
	for m := ModeLocal; m <= ModeRemote; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("session: unknown mode %q", s)
}

var (
	// ErrPredictionThreshold means a remote player is a full window behind.
	// The tick is skipped; call Step again once more input arrived.
	ErrPredictionThreshold = errors.New("session: prediction threshold reached")

	// ErrDesync is returned by a sync-test session when a resimulation does
	// not reproduce the original state.
	ErrDesync = errors.New("session: desync detected")
)

// RollbackRequest is a notification from the transport that the inputs
// from FromTick on were wrong. Entry k of Corrected[player] is the confirmed
// input of tick FromTick+k.
type RollbackRequest struct {
	FromTick  int64
	Corrected map[int][]core.InputRecord
}

// DesyncReport describes a sync-test failure.
type DesyncReport struct {
	Tick int64
	Want uint64
	Got  uint64
	// State is the encoded state that failed to reproduce.
	State  []byte
	Inputs [][]core.InputRecord
}

// Options configures a Session.
type Options struct {
	Config core.RuntimeConfig
	Mode   Mode
	// Remote lists the remote player handles in ModeRemote.
	Remote []int
	Buffer *transform.Buffer
	Logger *log.Logger
	// OnDesync is called before Step returns ErrDesync.
	OnDesync func(DesyncReport)
	// OnLocalInput receives the final input of every local player, tick by
	// tick, as soon as it can no longer change. Transports forward it to
	// the peers. It runs on the goroutine calling Step.
	OnLocalInput func(player int, tick int64, rec core.InputRecord)
}

type remotePlayer struct {
	confirmed    map[int64]core.InputRecord
	next         int64 // first tick without confirmed input
	disconnected bool
}

// Session owns an engine and its rollback store.
type Session struct {
	opts   Options
	eng    *engine.Engine
	store  *rollback.Store[engine.State]
	buf    *transform.Buffer
	log    *log.Logger
	local  map[int]map[int64]core.InputRecord
	remote map[int]*remotePlayer
	// resimFrom is the earliest tick whose inputs changed, or -1.
	resimFrom int64
	// sent is the first tick whose local inputs were not handed to
	// OnLocalInput yet.
	sent int64
}

// New creates a session around a fully set up engine.
func New(eng *engine.Engine, opts Options) (*Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Players != eng.Players() {
		return nil, fmt.Errorf("session: config has %d players, engine %d", cfg.Players, eng.Players())
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	buf := opts.Buffer
	if buf == nil {
		buf = transform.NewBuffer()
	}

	s := &Session{
		opts:      opts,
		eng:       eng,
		store:     rollback.NewStore[engine.State](eng, cfg.MaxPredictionWindow, cfg.Players, logger),
		buf:       buf,
		log:       logger,
		local:     make(map[int]map[int64]core.InputRecord),
		remote:    make(map[int]*remotePlayer),
		resimFrom: -1,
	}
	if opts.Mode == ModeRemote {
		for _, p := range opts.Remote {
			if p < 0 || p >= cfg.Players {
				return nil, fmt.Errorf("session: remote player %d out of range", p)
			}
			s.remote[p] = &remotePlayer{confirmed: make(map[int64]core.InputRecord)}
		}
	}
	s.publish()
	return s, nil
}

// Engine returns the simulated engine.
func (s *Session) Engine() *engine.Engine { return s.eng }

// Store returns the rollback store.
func (s *Session) Store() *rollback.Store[engine.State] { return s.store }

// Buffer returns the presentation buffer.
func (s *Session) Buffer() *transform.Buffer { return s.buf }

// Tick returns the next tick to simulate.
func (s *Session) Tick() int64 { return s.eng.Tick() }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.opts.Mode }

// IsRemote reports whether player is fed by the transport.
func (s *Session) IsRemote(player int) bool {
	_, ok := s.remote[player]
	return ok
}

// AddLocalInput sets the input sampled for a local player this tick. It
// applies InputDelay ticks later.
func (s *Session) AddLocalInput(player int, rec core.InputRecord) error {
	if player < 0 || player >= s.opts.Config.Players || s.IsRemote(player) {
		return fmt.Errorf("session: %d is not a local player", player)
	}
	s.setLocal(player, max(s.Tick()+int64(s.opts.Config.InputDelay), s.sent), rec)
	return nil
}

// AddRemoteInput delivers the confirmed input of a remote player. Input for
// a tick that was already simulated with a different prediction schedules a
// rollback for the next Step.
func (s *Session) AddRemoteInput(player int, tick int64, rec core.InputRecord) error {
	rp, ok := s.remote[player]
	if !ok {
		return fmt.Errorf("session: %d is not a remote player", player)
	}
	if tick < 0 {
		return fmt.Errorf("session: remote input for tick %d", tick)
	}
	if old, dup := rp.confirmed[tick]; dup {
		if old != rec {
			return fmt.Errorf("session: player %d changed confirmed input of tick %d", player, tick)
		}
		return nil
	}
	s.confirmAll(rp, tick, []core.InputRecord{rec})
	if tick < s.Tick() {
		s.confirmPast(player, tick, rec)
	}
	return nil
}

// confirmPast handles the confirmation of an already simulated tick. A
// correct prediction is only marked confirmed in the history; a wrong one
// schedules a rollback.
func (s *Session) confirmPast(player int, tick int64, rec core.InputRecord) {
	h := s.store.History()
	in, ok := h.At(tick)
	switch {
	case !ok || in[player].Record != rec:
		s.markResim(tick)
	case in[player].Status != core.StatusConfirmed:
		in[player] = core.PlayerInput{Record: rec, Status: core.StatusConfirmed}
		if err := h.Record(tick, in); err != nil {
			s.markResim(tick)
		}
	}
}

// Disconnect stops waiting for a remote player. Its later inputs are empty.
func (s *Session) Disconnect(player int) {
	if rp, ok := s.remote[player]; ok && !rp.disconnected {
		rp.disconnected = true
		s.log.Info("player disconnected", "player", player, "tick", s.Tick())
	}
}

func (s *Session) markResim(tick int64) {
	if s.resimFrom < 0 || tick < s.resimFrom {
		s.resimFrom = tick
	}
}

// predict returns the input of a remote player for tick: the confirmed one
// if known, otherwise the last confirmed input before it.
func (rp *remotePlayer) predict(tick int64) core.PlayerInput {
	if rec, ok := rp.confirmed[tick]; ok {
		return core.PlayerInput{Record: rec, Status: core.StatusConfirmed}
	}
	if rp.disconnected {
		return core.PlayerInput{Status: core.StatusDisconnected}
	}
	last := core.InputRecord(0)
	for t := min(tick, rp.next) - 1; t >= 0; t-- {
		if rec, ok := rp.confirmed[t]; ok {
			last = rec
			break
		}
	}
	return core.PlayerInput{Record: last, Status: core.StatusPredicted}
}

func (s *Session) inputsFor(tick int64) []core.PlayerInput {
	in := make([]core.PlayerInput, s.opts.Config.Players)
	for p := range in {
		if rp, ok := s.remote[p]; ok {
			in[p] = rp.predict(tick)
			continue
		}
		rec := s.local[p][tick]
		in[p] = core.PlayerInput{Record: rec, Status: core.StatusConfirmed}
	}
	return in
}

// Step applies any pending correction, then simulates one tick.
func (s *Session) Step() error {
	if err := s.resolve(); err != nil {
		return err
	}
	s.flushLocal()

	tick := s.Tick()
	for p, rp := range s.remote {
		if !rp.disconnected && tick-rp.next >= int64(s.opts.Config.MaxPredictionWindow) {
			return fmt.Errorf("%w: player %d confirmed up to tick %d, at tick %d", ErrPredictionThreshold, p, rp.next, tick)
		}
	}

	if err := s.store.Advance(s.inputsFor(tick)); err != nil {
		return err
	}
	for _, byTick := range s.local {
		delete(byTick, tick)
	}

	if s.opts.Mode == ModeSyncTest {
		if err := s.checkSync(); err != nil {
			return err
		}
	}
	s.publish()
	return nil
}

// flushLocal hands the local inputs up to the current tick plus the input
// delay to OnLocalInput. Later AddLocalInput calls cannot reach these ticks.
func (s *Session) flushLocal() {
	if s.opts.OnLocalInput == nil {
		return
	}
	until := s.Tick() + int64(s.opts.Config.InputDelay)
	for ; s.sent <= until; s.sent++ {
		for p := 0; p < s.opts.Config.Players; p++ {
			if s.IsRemote(p) {
				continue
			}
			s.opts.OnLocalInput(p, s.sent, s.local[p][s.sent])
		}
	}
}

// Reconcile applies pending corrections now instead of at the next Step and
// publishes the result.
func (s *Session) Reconcile() error {
	if s.resimFrom < 0 {
		return nil
	}
	if err := s.resolve(); err != nil {
		return err
	}
	s.publish()
	return nil
}

// resolve replays from the earliest corrected tick with the inputs known now.
func (s *Session) resolve() error {
	if s.resimFrom < 0 {
		return nil
	}
	from, to := s.resimFrom, s.Tick()
	corr := rollback.Corrections{}
	for p, rp := range s.remote {
		for t := from; t < to; t++ {
			corr.Set(p, t, rp.predict(t))
		}
	}
	if err := s.store.Resimulate(from, to, corr); err != nil {
		if errors.Is(err, rollback.ErrOutsideWindow) {
			// The correction cannot be applied incrementally any more.
			s.resimFrom = -1
			s.log.Warn("correction outside prediction window, resync required", "from", from, "tick", to)
		}
		return err
	}
	s.resimFrom = -1
	s.log.Debug("rolled back", "from", from, "to", to)
	return nil
}

// Rollback applies a correction from the transport right away. Corrections
// of ticks not simulated yet are kept as input for those ticks; only the
// simulated part is replayed. A correction that contradicts an input
// already confirmed for a remote player is rejected and changes nothing.
func (s *Session) Rollback(req RollbackRequest) error {
	if req.FromTick < 0 {
		return fmt.Errorf("session: rollback from tick %d", req.FromTick)
	}
	if err := s.resolve(); err != nil {
		return err
	}
	now := s.Tick()
	for p, recs := range req.Corrected {
		if p < 0 || p >= s.opts.Config.Players {
			return fmt.Errorf("session: rollback for player %d out of range", p)
		}
		rp, ok := s.remote[p]
		if !ok {
			continue
		}
		for k, r := range recs {
			t := req.FromTick + int64(k)
			if old, dup := rp.confirmed[t]; dup && old != r {
				return fmt.Errorf("session: player %d changed confirmed input of tick %d", p, t)
			}
		}
	}

	if req.FromTick < now {
		past := make(map[int][]core.InputRecord, len(req.Corrected))
		for p, recs := range req.Corrected {
			past[p] = recs[:min(int(now-req.FromTick), len(recs))]
		}
		corr := rollback.ConfirmedFrom(req.FromTick, past)
		if err := s.store.Resimulate(req.FromTick, now, corr); err != nil {
			if errors.Is(err, rollback.ErrOutsideWindow) {
				s.log.Warn("rollback request outside prediction window, resync required", "from", req.FromTick, "tick", now)
			}
			return err
		}
	}

	for p, recs := range req.Corrected {
		if rp, ok := s.remote[p]; ok {
			s.confirmAll(rp, req.FromTick, recs)
			continue
		}
		for k, r := range recs {
			if t := req.FromTick + int64(k); t >= now {
				s.setLocal(p, t, r)
			}
		}
	}
	if req.FromTick < now {
		s.publish()
	}
	return nil
}

func (s *Session) confirmAll(rp *remotePlayer, from int64, recs []core.InputRecord) {
	for k, r := range recs {
		rp.confirmed[from+int64(k)] = r
	}
	for {
		if _, ok := rp.confirmed[rp.next]; !ok {
			break
		}
		rp.next++
	}
}

func (s *Session) setLocal(player int, tick int64, rec core.InputRecord) {
	byTick, ok := s.local[player]
	if !ok {
		byTick = make(map[int64]core.InputRecord)
		s.local[player] = byTick
	}
	byTick[tick] = rec
}

// checkSync rolls back CheckDistance ticks and resimulates them with the
// same inputs; every replayed snapshot and the final state must match.
func (s *Session) checkSync() error {
	d := int64(s.opts.Config.CheckDistance)
	to := s.Tick()
	if d == 0 || to < d {
		return nil
	}
	from := to - d

	want := make(map[int64]uint64, d)
	for t := from + 1; t < to; t++ {
		snap, err := s.store.Load(t)
		if err != nil {
			return err
		}
		want[t] = snap.Checksum
	}
	final, err := s.eng.Checksum()
	if err != nil {
		return err
	}
	want[to] = final
	encoded, err := s.eng.Save().Encode()
	if err != nil {
		return err
	}

	if err := s.store.Resimulate(from, to, nil); err != nil {
		return err
	}

	for t := from + 1; t <= to; t++ {
		var got uint64
		if t == to {
			got, err = s.eng.Checksum()
			if err != nil {
				return err
			}
		} else {
			snap, err := s.store.Load(t)
			if err != nil {
				return err
			}
			got = snap.Checksum
		}
		if got != want[t] {
			report := DesyncReport{Tick: t, Want: want[t], Got: got, State: encoded, Inputs: s.store.History().Records()}
			s.log.Error("desync", "tick", t, "want", fmt.Sprintf("%016x", want[t]), "got", fmt.Sprintf("%016x", got))
			if s.opts.OnDesync != nil {
				s.opts.OnDesync(report)
			}
			return fmt.Errorf("%w at tick %d: checksum %016x, resimulated %016x", ErrDesync, t, want[t], got)
		}
	}
	return nil
}

// publish hands the current frame to readers. It runs only between ticks,
// so readers never see a partially simulated or replayed state.
func (s *Session) publish() {
	f := s.eng.Frame()
	sum, err := s.eng.Checksum()
	if err != nil {
		s.log.Warn("checksum for presentation", "tick", s.Tick(), "err", err)
	}
	f.Checksum = sum
	f.Rollbacks = s.store.Rollbacks()
	s.buf.Publish(f)
}
