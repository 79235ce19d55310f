// Package config provides YAML-based engine configuration loading and the
// network presets of the session layer.
package config

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/engine"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/physics"
)

// EngineConfig contains all configuration of a session.
type EngineConfig struct {
	Session SessionConfig `yaml:"session"`
	Physics PhysicsConfig `yaml:"physics"`
	Games   GamesConfig   `yaml:"games"`
	Input   InputConfig   `yaml:"input"`
}

// SessionConfig holds the settings every peer must agree on.
type SessionConfig struct {
	TickRate            int `yaml:"tick_rate"`
	Players             int `yaml:"players"`
	MaxPredictionWindow int `yaml:"max_prediction_window"`
	InputDelay          int `yaml:"input_delay"`
	CheckDistance       int `yaml:"check_distance"` // sync-test rollback distance
	SyncWorkers         int `yaml:"sync_workers"`
}

// PhysicsConfig defines the physics world. Numbers are parsed as exact
// decimals, never through floating point.
type PhysicsConfig struct {
	Gravity     maths.Vector2             `yaml:"gravity"`
	Integration physics.IntegrationParams `yaml:"integration"`
}

// GamesConfig contains the per-game settings.
type GamesConfig struct {
	Basic      BasicConfig      `yaml:"basic"`
	Platformer PlatformerConfig `yaml:"platformer"`
}

// BasicConfig defines the basic game.
type BasicConfig struct {
	Step    maths.Number `yaml:"step"`    // distance moved per tick
	Spacing int32        `yaml:"spacing"` // x distance between spawned players
}

// PlatformerConfig defines the platformer game.
type PlatformerConfig struct {
	Speed      maths.Number  `yaml:"speed"` // units per second
	PlayerSize maths.Vector2 `yaml:"player_size"`
	Spacing    int32         `yaml:"spacing"`
	Layer      uint32        `yaml:"layer"`
	LayerMask  uint32        `yaml:"layer_mask"`
	Arena      bool          `yaml:"arena"` // floor and walls around the players
	Crates     int           `yaml:"crates"`
}

// InputConfig maps the four directions to key names.
type InputConfig struct {
	Up    []string `yaml:"up"`
	Down  []string `yaml:"down"`
	Left  []string `yaml:"left"`
	Right []string `yaml:"right"`
}

// Runtime returns the session settings with the given screen size.
func (c EngineConfig) Runtime(screenW, screenH int) core.RuntimeConfig {
	return core.RuntimeConfig{
		ScreenW:             screenW,
		ScreenH:             screenH,
		TickRate:            c.Session.TickRate,
		Players:             c.Session.Players,
		MaxPredictionWindow: c.Session.MaxPredictionWindow,
		InputDelay:          c.Session.InputDelay,
		CheckDistance:       c.Session.CheckDistance,
	}
}

// Params returns the integration parameters, stepping at the session tick
// rate.
func (c EngineConfig) Params() physics.IntegrationParams {
	p := c.Physics.Integration
	p.TicksPerSecond = int64(c.Session.TickRate)
	return p
}

// Validate rejects configurations the engine cannot run.
func (c EngineConfig) Validate() error {
	if err := c.Runtime(1, 1).Validate(); err != nil {
		return err
	}
	p := c.Params()
	switch {
	case p.MaxSubsteps <= 0:
		return fmt.Errorf("config: physics.integration.max_substeps must be positive, got %d", p.MaxSubsteps)
	case p.SleepTicks < 0:
		return fmt.Errorf("config: physics.integration.sleep_ticks must not be negative, got %d", p.SleepTicks)
	case p.GridCell.Sign() <= 0:
		return fmt.Errorf("config: physics.integration.grid_cell must be positive, got %s", p.GridCell)
	case c.Session.SyncWorkers < 0:
		return fmt.Errorf("config: session.sync_workers must not be negative, got %d", c.Session.SyncWorkers)
	}
	pc := c.Games.Platformer
	if pc.PlayerSize.X.Sign() <= 0 || pc.PlayerSize.Y.Sign() <= 0 {
		return fmt.Errorf("config: games.platformer.player_size must be positive, got %s", pc.PlayerSize)
	}
	return nil
}

// EngineOptions returns the options of an engine built from c.
func (c EngineConfig) EngineOptions(logger *log.Logger) engine.Options {
	return engine.Options{
		Players:     c.Session.Players,
		Gravity:     c.Physics.Gravity,
		Params:      c.Params(),
		SyncWorkers: c.Session.SyncWorkers,
		Logger:      logger,
	}
}
