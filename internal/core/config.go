package core

import "fmt"

// RuntimeConfig contains the session-level settings every peer must agree on
// plus the local screen size.
type RuntimeConfig struct {
	ScreenW  int // Screen width in characters
	ScreenH  int // Screen height in characters
	TickRate int // Simulation ticks per second (default 60)

	Players             int // Number of players in the session
	MaxPredictionWindow int // Ticks that may be simulated ahead of confirmed input
	InputDelay          int // Ticks local input is delayed before it applies
	CheckDistance       int // Sync-test rollback distance
}

// DefaultConfig returns a RuntimeConfig with the session defaults.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		ScreenW:             80,
		ScreenH:             24,
		TickRate:            60,
		Players:             2,
		MaxPredictionWindow: 12,
		InputDelay:          2,
		CheckDistance:       2,
	}
}

// Validate rejects settings the session cannot run with.
func (c RuntimeConfig) Validate() error {
	switch {
	case c.TickRate <= 0:
		return fmt.Errorf("core: tick rate must be positive, got %d", c.TickRate)
	case c.Players <= 0:
		return fmt.Errorf("core: need at least one player, got %d", c.Players)
	case c.MaxPredictionWindow <= 0:
		return fmt.Errorf("core: prediction window must be positive, got %d", c.MaxPredictionWindow)
	case c.InputDelay < 0:
		return fmt.Errorf("core: input delay must not be negative, got %d", c.InputDelay)
	case c.CheckDistance < 0 || c.CheckDistance > c.MaxPredictionWindow:
		return fmt.Errorf("core: check distance %d outside [0, %d]", c.CheckDistance, c.MaxPredictionWindow)
	}
	return nil
}
