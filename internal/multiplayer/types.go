// Package multiplayer pairs connected sessions into matches and relays the
// confirmed inputs of each peer to the other. Every peer runs its own
// rollback session; the relay never simulates anything itself.
package multiplayer

// SessionID uniquely identifies a connected session (e.g., SSH connection).
type SessionID string

// MatchID uniquely identifies a running match.
type MatchID string

// Seats is the number of players in a match. The host plays handle 0 and
// the joiner handle 1.
const Seats = 2

// Seat handles.
const (
	HostSeat   = 0
	JoinerSeat = 1
)

// other returns the opposing seat.
func other(seat int) int {
	return Seats - 1 - seat
}
