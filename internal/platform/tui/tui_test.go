package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/core"
	_ "github.com/vovakirdan/rollback-engine/internal/games/basic"
	_ "github.com/vovakirdan/rollback-engine/internal/games/platformer"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/multiplayer"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeyMapper(t *testing.T) {
	km := NewKeyMapper(config.Default().Input)
	tests := []struct {
		msg    tea.KeyMsg
		key    core.Key
		isDir  bool
		action core.Action
	}{
		{runes("w"), core.KeyUp, true, core.ActionNone},
		{tea.KeyMsg{Type: tea.KeyLeft}, core.KeyLeft, true, core.ActionNone},
		{runes("d"), core.KeyRight, true, core.ActionNone},
		{tea.KeyMsg{Type: tea.KeyTab}, 0, false, core.ActionDebug},
		{tea.KeyMsg{Type: tea.KeyEsc}, 0, false, core.ActionBack},
		{runes("q"), 0, false, core.ActionQuit},
	}
	for _, tt := range tests {
		t.Run(tt.msg.String(), func(t *testing.T) {
			k, ok := km.MapDirection(tt.msg)
			if ok != tt.isDir || (ok && k != tt.key) {
				t.Errorf("MapDirection = %v, %v", k, ok)
			}
			if got := km.MapAction(tt.msg); got != tt.action {
				t.Errorf("MapAction = %s, want %s", got, tt.action)
			}
		})
	}
}

func TestKeyHold(t *testing.T) {
	h := NewKeyHold(2)
	h.Press(core.KeyLeft)
	for i := 0; i < 2; i++ {
		if s := h.Sample(); !s.Held(core.KeyLeft) || s.Held(core.KeyRight) {
			t.Fatalf("sample %d: left not held alone", i)
		}
	}
	if h.Sample().Held(core.KeyLeft) {
		t.Error("key still held after the hold ran out")
	}

	h.Press(core.KeyUp)
	h.Release()
	if h.Sample().Held(core.KeyUp) {
		t.Error("key held after release")
	}
	if holdFrames(60) != 5 || holdFrames(1) != 1 {
		t.Errorf("holdFrames = %d, %d", holdFrames(60), holdFrames(1))
	}
}

func TestMenuModes(t *testing.T) {
	tests := []struct {
		name   string
		online bool
		rights int
		want   session.Mode
	}{
		{"default", false, 0, session.ModeLocal},
		{"synctest", false, 1, session.ModeSyncTest},
		{"wraps", false, 2, session.ModeLocal},
		{"online", true, 2, session.ModeRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m tea.Model = NewMenuModel(80, 24, false, tt.online)
			for i := 0; i < tt.rights; i++ {
				m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
			}
			m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
			m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

			sel := m.(MenuModel).Selected()
			if sel == nil {
				t.Fatal("nothing selected")
			}
			if sel.Mode != tt.want || sel.GameID != "platformer" {
				t.Errorf("selected %s in %s, want platformer in %s", sel.GameID, sel.Mode, tt.want)
			}
		})
	}
}

func TestMenuReplaysOnlyWhenAllowed(t *testing.T) {
	m, _ := NewMenuModel(80, 24, false, false).Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.(MenuModel).WantsReplays() {
		t.Error("replays opened from a menu without them")
	}
	m, _ = NewMenuModel(80, 24, true, false).Update(tea.KeyMsg{Type: tea.KeyTab})
	if !m.(MenuModel).WantsReplays() {
		t.Error("tab did not open replays")
	}
}

func TestLobbyJoinCode(t *testing.T) {
	coord := multiplayer.NewCoordinator(multiplayer.DefaultCoordinatorConfig(), multiplayer.NewSessionRegistry(), nil)
	var m tea.Model = NewOnlineLobbyModel("platformer", "Platformer", "me", coord, 80, 24)

	m, _ = m.Update(runes("j"))
	for _, r := range "ab9c2d7x" {
		m, _ = m.Update(runes(string(r)))
	}
	lobby := m.(OnlineLobbyModel)
	if lobby.State() != OnlineStateJoinEnterCode {
		t.Fatalf("state = %d", lobby.State())
	}
	if !strings.Contains(lobby.View(), "[ ABC2D7 ]") {
		t.Errorf("code not shown:\n%s", lobby.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.(OnlineLobbyModel).State() != OnlineStateJoinWaiting {
		t.Error("enter with a full code did not join")
	}
	m, _ = m.Update(multiplayer.LobbyErrorEvent{Message: "Lobby not found"})
	if m.(OnlineLobbyModel).State() != OnlineStateJoinEnterCode || !strings.Contains(m.View(), "Lobby not found") {
		t.Error("join error not shown")
	}

	m, _ = m.Update(multiplayer.MatchStartedEvent{MatchID: "m", Seat: multiplayer.JoinerSeat, GameID: "platformer"})
	started := m.(OnlineLobbyModel).Started()
	if started == nil || started.Seat != multiplayer.JoinerSeat {
		t.Errorf("started = %+v", started)
	}
}

func TestDrawFrame(t *testing.T) {
	scr := core.NewScreen(40, 12)
	f := transform.Frame{
		Tick: 7,
		Items: []transform.Item{
			{Entity: 1, Pose: transform.Pose{X: 0, Y: 0}, Player: 0},
			{Entity: 2, Pose: transform.Pose{X: 10, Y: 0}, Player: -1},
		},
		Outlines: []transform.Outline{
			{Kind: transform.OutlineCuboid, Center: maths.V2(0, 0), HalfExtents: maths.V2(2, 2)},
		},
		Rollbacks: 3,
	}
	DrawFrame(scr, f, FrameView{Title: "test", Viewport: core.NewViewport(40, 12, maths.One), Status: "hello"})

	if got := scr.Get(19, 5); got != '█' {
		t.Errorf("player body cell = %q, want █", got)
	}
	if got := scr.GetCell(19, 5).Color; got != core.PlayerColor(0) {
		t.Errorf("player body color = %v", got)
	}
	if got := scr.Get(30, 6); got != '*' {
		t.Errorf("scenery glyph = %q, want *", got)
	}
	if row := scr.Row(0); !strings.Contains(row, "tick 7") || !strings.Contains(row, "rollbacks 3") {
		t.Errorf("header = %q", row)
	}
	if !strings.Contains(scr.Row(1), "hello") {
		t.Errorf("status row = %q", scr.Row(1))
	}
}

func TestFitViewport(t *testing.T) {
	f := transform.Frame{Items: []transform.Item{
		{Pose: transform.Pose{X: 0}, Player: 0},
		{Pose: transform.Pose{X: 400}, Player: 1},
	}}
	vp := fitViewport(f, 80, 24)
	x0, _ := vp.ToScreen(maths.V2(0, 0))
	x1, _ := vp.ToScreen(maths.V2(400, 0))
	if x0 < 0 || x1 >= 80 || x0 >= x1 {
		t.Errorf("items at columns %d and %d on an 80 column screen", x0, x1)
	}
}
