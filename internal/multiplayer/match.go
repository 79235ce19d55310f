package multiplayer

import (
	"sync"
	"time"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/session"
)

// Peer receives the inputs of the opposing seat. *session.Runner
// implements it.
type Peer interface {
	SendRemote(in session.RemoteInput)
	PlayerDisconnected(player int)
}

// MatchResult summarises a finished match.
type MatchResult struct {
	MatchID  MatchID
	GameID   string
	Reason   MatchEndReason
	Relayed  int // inputs delivered to peers
	Duration time.Duration
}

type relayed struct {
	in  session.RemoteInput
	due time.Time
}

// Match relays confirmed inputs between the two seats of a game, optionally
// holding each back by a fixed latency to emulate a real link.
type Match struct {
	id       MatchID
	code     string
	gameID   string
	sessions [Seats]SessionHandle
	latency  time.Duration
	tickRate int

	mu    sync.Mutex
	peers [Seats]Peer

	inputs      chan session.RemoteInput
	disconnects chan SessionID
	done        chan struct{}
	doneOnce    sync.Once

	// queues holds the undelivered inputs per destination seat, in order.
	queues  [Seats][]relayed
	relayed int
	started time.Time
}

// NewMatch creates a match between host and joiner.
func NewMatch(id MatchID, code, gameID string, host, joiner SessionHandle, tickRate int, latency time.Duration) *Match {
	return &Match{
		id:          id,
		code:        code,
		gameID:      gameID,
		sessions:    [Seats]SessionHandle{host, joiner},
		latency:     latency,
		tickRate:    max(tickRate, 1),
		inputs:      make(chan session.RemoteInput, 1024),
		disconnects: make(chan SessionID, Seats),
		done:        make(chan struct{}),
	}
}

// ID returns the match identifier.
func (m *Match) ID() MatchID {
	return m.id
}

// Code returns the join code used to create this match.
func (m *Match) Code() string {
	return m.code
}

// GameID returns the game identifier.
func (m *Match) GameID() string {
	return m.gameID
}

// Latency returns the emulated one-way delay.
func (m *Match) Latency() time.Duration {
	return m.latency
}

// Attach connects the session playing seat. Inputs for it are held until
// it is attached.
func (m *Match) Attach(seat int, p Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seat >= 0 && seat < Seats {
		m.peers[seat] = p
	}
}

// Send forwards the final input of seat's player for tick. It has the
// signature of session.Options.OnLocalInput. Inputs are never dropped: Send
// blocks while the relay is busy, unless the match has ended.
func (m *Match) Send(seat int, tick int64, rec core.InputRecord) {
	select {
	case m.inputs <- session.RemoteInput{Player: seat, Tick: tick, Record: rec}:
	case <-m.done:
	}
}

// PlayerDisconnected signals that the session with sessionID left.
func (m *Match) PlayerDisconnected(sessionID SessionID) {
	select {
	case m.disconnects <- sessionID:
	default:
	}
}

// Run relays inputs until a peer leaves or Stop is called. onComplete is
// called with the result when a peer leaves.
func (m *Match) Run(onComplete func(MatchResult)) {
	defer m.Stop()
	m.started = time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(m.tickRate))
	defer ticker.Stop()

	// Monitor session disconnects
	go m.monitorSessions()

	for {
		select {
		case in := <-m.inputs:
			dest := other(in.Player)
			m.queues[dest] = append(m.queues[dest], relayed{in: in, due: time.Now().Add(m.latency)})
			if m.latency == 0 {
				m.flush(time.Now())
			}

		case <-ticker.C:
			m.flush(time.Now())

		case sessionID := <-m.disconnects:
			result := m.handleDisconnect(sessionID)
			if onComplete != nil {
				onComplete(result)
			}
			return

		case <-m.done:
			return
		}
	}
}

// flush delivers every due input whose destination is attached.
func (m *Match) flush(now time.Time) {
	m.mu.Lock()
	peers := m.peers
	m.mu.Unlock()

	for seat, q := range m.queues {
		if peers[seat] == nil {
			continue
		}
		n := 0
		for n < len(q) && !q[n].due.After(now) {
			peers[seat].SendRemote(q[n].in)
			n++
		}
		m.relayed += n
		m.queues[seat] = q[n:]
	}
}

// handleDisconnect hands the leaving peer's last inputs to the remaining one
// and tells it to stop waiting.
func (m *Match) handleDisconnect(sessionID SessionID) MatchResult {
	// Inputs still in the channel were sent before the peer left.
	for drained := false; !drained; {
		select {
		case in := <-m.inputs:
			dest := other(in.Player)
			m.queues[dest] = append(m.queues[dest], relayed{in: in})
		default:
			drained = true
		}
	}
	m.flush(time.Now().Add(m.latency))

	reason := MatchEndReasonLeft
	select {
	case <-m.sessionDone(sessionID):
		reason = MatchEndReasonDisconnect
	default:
	}

	for seat, s := range m.sessions {
		if s.ID() == sessionID {
			continue
		}
		m.mu.Lock()
		p := m.peers[seat]
		m.mu.Unlock()
		if p != nil {
			p.PlayerDisconnected(other(seat))
		}
		s.Send(MatchEndedEvent{MatchID: m.id, Reason: reason})
	}

	return MatchResult{
		MatchID:  m.id,
		GameID:   m.gameID,
		Reason:   reason,
		Relayed:  m.relayed,
		Duration: time.Since(m.started),
	}
}

func (m *Match) sessionDone(id SessionID) <-chan struct{} {
	for _, s := range m.sessions {
		if s.ID() == id {
			return s.Done()
		}
	}
	return nil
}

func (m *Match) monitorSessions() {
	select {
	case <-m.sessions[HostSeat].Done():
		m.PlayerDisconnected(m.sessions[HostSeat].ID())
	case <-m.sessions[JoinerSeat].Done():
		m.PlayerDisconnected(m.sessions[JoinerSeat].ID())
	case <-m.done:
	}
}

// Stop ends the match without notifying anyone.
func (m *Match) Stop() {
	m.doneOnce.Do(func() {
		close(m.done)
	})
}

// Done is closed when the match stopped.
func (m *Match) Done() <-chan struct{} {
	return m.done
}
