package multiplayer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/session"
)

func waitEvent[T SessionEvent](t *testing.T, s *ChannelSession) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-s.Events():
			if e, ok := evt.(T); ok {
				return e
			}
		case <-timeout:
			var zero T
			t.Fatalf("session %s: no %T event", s.ID(), zero)
			return zero
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newCoordinator(t *testing.T, ids ...SessionID) (*Coordinator, []*ChannelSession) {
	t.Helper()
	reg := NewSessionRegistry()
	var sessions []*ChannelSession
	for _, id := range ids {
		s := NewChannelSession(id, 16)
		if err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
		sessions = append(sessions, s)
	}
	c := NewCoordinator(DefaultCoordinatorConfig(), reg, nil)
	c.Start()
	t.Cleanup(c.Stop)
	return c, sessions
}

type fakePeer struct {
	mu   sync.Mutex
	got  []session.RemoteInput
	gone []int
}

func (p *fakePeer) SendRemote(in session.RemoteInput) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, in)
}

func (p *fakePeer) PlayerDisconnected(player int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gone = append(p.gone, player)
}

func (p *fakePeer) snapshot() ([]session.RemoteInput, []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]session.RemoteInput(nil), p.got...), append([]int(nil), p.gone...)
}

func TestCoordinatorPairsSessions(t *testing.T) {
	c, s := newCoordinator(t, "host", "joiner")
	host, joiner := s[0], s[1]

	c.Send(CreateLobbyMsg{SessionID: host.ID(), GameID: "platformer"})
	created := waitEvent[LobbyCreatedEvent](t, host)
	if len(created.Code) != 6 || created.GameID != "platformer" {
		t.Fatalf("created = %+v", created)
	}
	if _, ok := c.Lobby(created.Code); !ok {
		t.Fatal("lobby not registered")
	}

	c.Send(JoinLobbyMsg{SessionID: joiner.ID(), Code: created.Code})
	hs := waitEvent[MatchStartedEvent](t, host)
	js := waitEvent[MatchStartedEvent](t, joiner)
	if hs.Seat != HostSeat || js.Seat != JoinerSeat {
		t.Errorf("seats = %d, %d", hs.Seat, js.Seat)
	}
	if hs.Match == nil || hs.Match != js.Match || hs.GameID != "platformer" {
		t.Fatal("peers got different matches")
	}
	if c.LobbyCount() != 0 || c.MatchCount() != 1 {
		t.Errorf("lobbies = %d matches = %d", c.LobbyCount(), c.MatchCount())
	}

	c.Send(LeaveMatchMsg{SessionID: joiner.ID(), MatchID: js.MatchID})
	ended := waitEvent[MatchEndedEvent](t, host)
	if ended.Reason != MatchEndReasonLeft {
		t.Errorf("reason = %s", ended.Reason)
	}
	eventually(t, "match removal", func() bool { return c.MatchCount() == 0 })
}

func TestLobbyErrors(t *testing.T) {
	c, s := newCoordinator(t, "host", "joiner")
	host, joiner := s[0], s[1]

	c.Send(JoinLobbyMsg{SessionID: joiner.ID(), Code: "NOPE00"})
	if e := waitEvent[LobbyErrorEvent](t, joiner); e.Message != "Lobby not found" {
		t.Errorf("unknown code: %q", e.Message)
	}

	c.Send(CreateLobbyMsg{SessionID: host.ID(), GameID: "basic"})
	created := waitEvent[LobbyCreatedEvent](t, host)

	c.Send(CreateLobbyMsg{SessionID: host.ID(), GameID: "basic"})
	if e := waitEvent[LobbyErrorEvent](t, host); e.Message != "Already in a lobby or match" {
		t.Errorf("second lobby: %q", e.Message)
	}
	c.Send(JoinLobbyMsg{SessionID: host.ID(), Code: created.Code})
	waitEvent[LobbyErrorEvent](t, host)

	c.Send(CancelLobbyMsg{SessionID: host.ID(), Code: created.Code})
	eventually(t, "lobby removal", func() bool { return c.LobbyCount() == 0 })
}

func TestExpiredLobbies(t *testing.T) {
	c, s := newCoordinator(t, "host")
	c.Send(CreateLobbyMsg{SessionID: s[0].ID(), GameID: "basic"})
	waitEvent[LobbyCreatedEvent](t, s[0])

	c.cleanupExpiredLobbies(time.Now().Add(time.Hour))
	if c.LobbyCount() != 0 {
		t.Error("expired lobby kept")
	}
	if e := waitEvent[LobbyErrorEvent](t, s[0]); e.Message != "Lobby expired" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestMatchRelay(t *testing.T) {
	host, joiner := NewChannelSession("host", 4), NewChannelSession("joiner", 4)
	m := NewMatch("m1", "ABCDEF", "basic", host, joiner, 240, 0)
	results := make(chan MatchResult, 1)
	go m.Run(func(r MatchResult) { results <- r })

	// Held until the joiner's session attaches.
	for tick := int64(0); tick < 10; tick++ {
		m.Send(HostSeat, tick, core.InputRecord(tick%16))
	}
	hostPeer, joinerPeer := &fakePeer{}, &fakePeer{}
	m.Attach(HostSeat, hostPeer)
	m.Attach(JoinerSeat, joinerPeer)
	m.Send(JoinerSeat, 0, core.InputLeft)

	eventually(t, "relayed inputs", func() bool {
		got, _ := joinerPeer.snapshot()
		back, _ := hostPeer.snapshot()
		return len(got) == 10 && len(back) == 1
	})
	got, _ := joinerPeer.snapshot()
	for i, in := range got {
		if in.Player != HostSeat || in.Tick != int64(i) || in.Record != core.InputRecord(i%16) {
			t.Errorf("relayed[%d] = %+v", i, in)
		}
	}
	if back, _ := hostPeer.snapshot(); back[0].Player != JoinerSeat || back[0].Record != core.InputLeft {
		t.Errorf("relayed to host = %+v", back[0])
	}

	joiner.Close()
	select {
	case r := <-results:
		if r.Reason != MatchEndReasonDisconnect || r.Relayed != 11 {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("match did not end")
	}
	if _, gone := hostPeer.snapshot(); len(gone) != 1 || gone[0] != JoinerSeat {
		t.Errorf("host peer disconnects = %v", gone)
	}
	if e := waitEvent[MatchEndedEvent](t, host); e.Reason != MatchEndReasonDisconnect {
		t.Errorf("host told %s", e.Reason)
	}
}

func TestMatchLatency(t *testing.T) {
	host, joiner := NewChannelSession("host", 4), NewChannelSession("joiner", 4)
	m := NewMatch("m2", "ABCDEF", "basic", host, joiner, 240, 80*time.Millisecond)
	peer := &fakePeer{}
	m.Attach(JoinerSeat, peer)
	go m.Run(nil)
	defer m.Stop()

	sent := time.Now()
	m.Send(HostSeat, 0, core.InputUp)
	eventually(t, "delayed input", func() bool {
		got, _ := peer.snapshot()
		return len(got) == 1
	})
	if d := time.Since(sent); d < 80*time.Millisecond {
		t.Errorf("delivered after %s, want at least 80ms", d)
	}
}

func TestChannelSessionDropsOldest(t *testing.T) {
	s := NewChannelSession("s", 2)
	s.Send(LobbyErrorEvent{Message: "1"})
	s.Send(LobbyErrorEvent{Message: "2"})
	s.Send(LobbyErrorEvent{Message: "3"})
	if e := (<-s.Events()).(LobbyErrorEvent); e.Message != "2" {
		t.Errorf("first = %q, want 2", e.Message)
	}
	s.Close()
	s.Close()
	s.Send(LobbyErrorEvent{Message: "4"})
	if e := (<-s.Events()).(LobbyErrorEvent); e.Message != "3" {
		t.Errorf("second = %q, want 3", e.Message)
	}
	select {
	case evt := <-s.Events():
		t.Errorf("event after close: %v", evt)
	default:
	}
}

func TestSessionRegistry(t *testing.T) {
	reg := NewSessionRegistry()
	first := NewChannelSession("alice@host", 1)
	if err := reg.Register(first); err != nil {
		t.Fatal(err)
	}
	second := NewChannelSession("alice@host", 1)
	if err := reg.Register(second); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("duplicate register: err = %v", err)
	}

	// A closed session gives its ID up, and its late Unregister leaves the
	// replacement alone.
	first.Close()
	if err := reg.Register(second); err != nil {
		t.Fatal(err)
	}
	reg.Unregister(first)
	if h, ok := reg.Get("alice@host"); !ok || h != SessionHandle(second) {
		t.Error("replacement session was unregistered")
	}
	reg.Unregister(second)
	if _, ok := reg.Get("alice@host"); ok {
		t.Error("session still registered")
	}
}
