package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/core"
)

// KeyMapper translates Bubble Tea key messages to direction keys and
// platform actions. Direction keys come from the configured bindings.
type KeyMapper struct {
	directions map[string]core.Key
}

// NewKeyMapper creates a key mapper for the given bindings.
func NewKeyMapper(in config.InputConfig) *KeyMapper {
	km := &KeyMapper{directions: make(map[string]core.Key)}
	for _, b := range []struct {
		names []string
		key   core.Key
	}{
		{in.Up, core.KeyUp},
		{in.Down, core.KeyDown},
		{in.Left, core.KeyLeft},
		{in.Right, core.KeyRight},
	} {
		for _, n := range b.names {
			km.directions[n] = b.key
		}
	}
	return km
}

// MapDirection returns the direction key bound to msg.
func (km *KeyMapper) MapDirection(msg tea.KeyMsg) (core.Key, bool) {
	k, ok := km.directions[msg.String()]
	return k, ok
}

// MapAction translates a key message to a platform action.
func (km *KeyMapper) MapAction(msg tea.KeyMsg) core.Action {
	switch msg.String() {
	case "ctrl+c", "q":
		return core.ActionQuit
	case "enter":
		return core.ActionConfirm
	case "b", "esc":
		return core.ActionBack
	case "p":
		return core.ActionPause
	case "r":
		return core.ActionRestart
	case "tab":
		return core.ActionDebug
	}
	return core.ActionNone
}

// MenuAction represents a menu-specific action derived from input.
type MenuAction int

const (
	MenuActionNone MenuAction = iota
	MenuActionUp
	MenuActionDown
	MenuActionLeft
	MenuActionRight
	MenuActionSelect
	MenuActionBack
	MenuActionQuit
	MenuActionReplays
)

// MapKeyToMenuAction translates a key to a menu action.
func (km *KeyMapper) MapKeyToMenuAction(msg tea.KeyMsg) MenuAction {
	key := msg.String()

	switch key {
	case "ctrl+c", "q":
		return MenuActionQuit
	case "w", "up", "k": // vim-style k for up
		return MenuActionUp
	case "s", "down", "j": // vim-style j for down
		return MenuActionDown
	case "a", "left", "h":
		return MenuActionLeft
	case "d", "right", "l":
		return MenuActionRight
	case "enter", " ":
		return MenuActionSelect
	case "b", "esc":
		return MenuActionBack
	case "tab":
		return MenuActionReplays
	}

	return MenuActionNone
}

// KeyHold turns key presses into held keys. Terminals report presses and
// auto-repeats but no releases, so a key counts as held for a few frames
// after each press.
type KeyHold struct {
	frames int
	left   [4]int
}

// NewKeyHold creates a hold tracker keeping keys down for frames frames.
func NewKeyHold(frames int) *KeyHold {
	return &KeyHold{frames: max(frames, 1)}
}

// holdFrames covers the gap between terminal auto-repeats, about 30 Hz,
// at the given frame rate.
func holdFrames(fps int) int {
	return fps/15 + 1
}

// Press marks k as held.
func (h *KeyHold) Press(k core.Key) {
	if k >= 0 && int(k) < len(h.left) {
		h.left[k] = h.frames
	}
}

// Sample returns the keys held this frame and ages every press by one.
func (h *KeyHold) Sample() core.KeyState {
	var s core.KeyState
	for k := range h.left {
		if h.left[k] > 0 {
			s.Press(core.Key(k))
			h.left[k]--
		}
	}
	return s
}

// Release drops every held key.
func (h *KeyHold) Release() {
	h.left = [4]int{}
}
