package core

import (
	"errors"
	"fmt"
	"strings"
)

// InputRecord is the per-player, per-tick input in its compact wire form.
// Only the low four bits are meaningful; the rest are always zero.
type InputRecord uint8

// Bit layout of an InputRecord. Peers depend on it: do not reorder.
const (
	InputUp    InputRecord = 1 << 0
	InputDown  InputRecord = 1 << 1
	InputLeft  InputRecord = 1 << 2
	InputRight InputRecord = 1 << 3

	inputMask = InputUp | InputDown | InputLeft | InputRight
)

// ErrInputSize is returned when decoding an InputRecord from a buffer that
// is not exactly one byte.
var ErrInputSize = errors.New("core: input record must be exactly one byte")

// Has reports whether every bit of flag is set.
func (r InputRecord) Has(flag InputRecord) bool {
	return r&flag == flag
}

// Axis returns the horizontal and vertical direction encoded in the record
// as -1, 0 or +1. Opposite directions held together cancel out. Up is +1 on
// the vertical axis.
func (r InputRecord) Axis() (x, y int32) {
	if r.Has(InputRight) {
		x++
	}
	if r.Has(InputLeft) {
		x--
	}
	if r.Has(InputUp) {
		y++
	}
	if r.Has(InputDown) {
		y--
	}
	return x, y
}

func (r InputRecord) String() string {
	if r&inputMask == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  InputRecord
		name string
	}{{InputUp, "up"}, {InputDown, "down"}, {InputLeft, "left"}, {InputRight, "right"}} {
		if r.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "+")
}

// MarshalBinary encodes the record as exactly one byte.
func (r InputRecord) MarshalBinary() ([]byte, error) {
	return []byte{byte(r & inputMask)}, nil
}

// UnmarshalBinary decodes a one-byte record. Unknown high bits are dropped.
func (r *InputRecord) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return fmt.Errorf("%w: got %d", ErrInputSize, len(data))
	}
	*r = InputRecord(data[0]) & inputMask
	return nil
}

// InputStatus tells the simulation whether an input came from the player or
// was guessed by the session.
type InputStatus uint8

const (
	StatusConfirmed InputStatus = iota
	StatusPredicted
	// StatusDisconnected marks a player that left; the record is zero.
	StatusDisconnected
)

func (s InputStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusPredicted:
		return "predicted"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PlayerInput is one player's input for one tick as handed to gameplay.
type PlayerInput struct {
	Record InputRecord
	Status InputStatus
}

// Key is a physical direction key sampled by the platform layer.
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	keyCount
)

// KeyState is a snapshot of which direction keys are held.
type KeyState [keyCount]bool

// Press marks k as held.
func (s *KeyState) Press(k Key) {
	if k >= 0 && k < keyCount {
		s[k] = true
	}
}

// Held reports whether k is held.
func (s KeyState) Held(k Key) bool {
	return k >= 0 && k < keyCount && s[k]
}

// Bindings maps each input bit to the key that drives it.
type Bindings struct {
	Up    Key
	Down  Key
	Left  Key
	Right Key
}

// DefaultBindings maps each direction bit to the key of the same name.
func DefaultBindings() Bindings {
	return Bindings{Up: KeyUp, Down: KeyDown, Left: KeyLeft, Right: KeyRight}
}

// InputAdapter converts sampled key state into an InputRecord. It holds no
// state besides its bindings, so the same sample always gives the same record.
type InputAdapter struct {
	bindings Bindings
}

// NewInputAdapter creates an adapter with the given bindings.
func NewInputAdapter(b Bindings) InputAdapter {
	return InputAdapter{bindings: b}
}

// Read packages the key sample for the local player.
func (a InputAdapter) Read(keys KeyState) InputRecord {
	var r InputRecord
	if keys.Held(a.bindings.Up) {
		r |= InputUp
	}
	if keys.Held(a.bindings.Down) {
		r |= InputDown
	}
	if keys.Held(a.bindings.Left) {
		r |= InputLeft
	}
	if keys.Held(a.bindings.Right) {
		r |= InputRight
	}
	return r
}

// Action is a non-simulation command issued from the keyboard, such as
// quitting or pausing. Actions never reach the simulation.
type Action int

const (
	ActionNone    Action = iota
	ActionConfirm        // Enter
	ActionBack           // Escape
	ActionRestart        // R
	ActionQuit           // Q, Ctrl+C
	ActionPause          // P
	ActionDebug          // Tab - toggle collider outlines
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "None"
	case ActionConfirm:
		return "Confirm"
	case ActionBack:
		return "Back"
	case ActionRestart:
		return "Restart"
	case ActionQuit:
		return "Quit"
	case ActionPause:
		return "Pause"
	case ActionDebug:
		return "Debug"
	default:
		return "Unknown"
	}
}
