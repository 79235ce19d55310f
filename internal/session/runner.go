package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/rollback"
)

// RemoteInput is a confirmed input delivered by the transport.
type RemoteInput struct {
	Player int
	Tick   int64
	Record core.InputRecord
}

type localInput struct {
	player int
	record core.InputRecord
}

// Runner drives a Session at its tick rate. Inputs and rollback requests
// may be sent from any goroutine; the session itself is only touched by the
// goroutine running Run.
type Runner struct {
	sess     *Session
	tickRate int

	inputs   chan localInput
	remote   chan RemoteInput
	requests chan RollbackRequest
	gone     chan int

	done     chan struct{}
	doneOnce sync.Once

	// pending merges the local inputs received during one tick.
	pending map[int]core.InputRecord
}

// NewRunner creates a runner for sess.
func NewRunner(sess *Session) *Runner {
	return &Runner{
		sess:     sess,
		tickRate: sess.opts.Config.TickRate,
		inputs:   make(chan localInput, 64),
		remote:   make(chan RemoteInput, 256),
		requests: make(chan RollbackRequest, 8),
		gone:     make(chan int, 4),
		done:     make(chan struct{}),
		pending:  make(map[int]core.InputRecord),
	}
}

// SendInput queues a local input sample. Samples of the same tick are OR-ed
// together. Non-blocking: a full queue drops the sample.
func (r *Runner) SendInput(player int, rec core.InputRecord) {
	select {
	case r.inputs <- localInput{player: player, record: rec}:
	default:
	}
}

// SendRemote queues a confirmed remote input. It blocks while the queue is
// full since a lost confirmed input would stall the session.
func (r *Runner) SendRemote(in RemoteInput) {
	select {
	case r.remote <- in:
	case <-r.done:
	}
}

// RequestRollback queues a rollback notification.
func (r *Runner) RequestRollback(req RollbackRequest) {
	select {
	case r.requests <- req:
	case <-r.done:
	}
}

// PlayerDisconnected signals that a remote player has gone.
func (r *Runner) PlayerDisconnected(player int) {
	select {
	case r.gone <- player:
	default:
	}
}

// Run simulates one tick per tick interval until ctx is done, Stop is called
// or a fatal error occurs. Skipped ticks and out-of-window corrections are
// logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	defer r.Stop()

	ticker := time.NewTicker(time.Second / time.Duration(r.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.runTick(); err != nil {
				return err
			}

		case req := <-r.requests:
			if err := r.sess.Rollback(req); err != nil && !recoverable(err) {
				return err
			}

		case p := <-r.gone:
			r.sess.Disconnect(p)

		case <-ctx.Done():
			return nil

		case <-r.done:
			return nil
		}
	}
}

func (r *Runner) runTick() error {
	r.drain()
	for p, rec := range r.pending {
		if err := r.sess.AddLocalInput(p, rec); err != nil {
			r.sess.log.Warn("local input rejected", "player", p, "err", err)
		}
	}
	clear(r.pending)

	err := r.sess.Step()
	switch {
	case err == nil:
		return nil
	case recoverable(err):
		r.sess.log.Debug("tick skipped", "tick", r.sess.Tick(), "err", err)
		return nil
	default:
		return err
	}
}

func (r *Runner) drain() {
	for {
		select {
		case in := <-r.inputs:
			r.pending[in.player] |= in.record
		case in := <-r.remote:
			if err := r.sess.AddRemoteInput(in.Player, in.Tick, in.Record); err != nil {
				r.sess.log.Warn("remote input rejected", "player", in.Player, "tick", in.Tick, "err", err)
			}
		default:
			return
		}
	}
}

func recoverable(err error) bool {
	return errors.Is(err, ErrPredictionThreshold) || errors.Is(err, rollback.ErrOutsideWindow)
}

// Stop ends Run.
func (r *Runner) Stop() {
	r.doneOnce.Do(func() {
		close(r.done)
	})
}

// Done is closed once the runner stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
