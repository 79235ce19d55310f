package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

func TestEmbeddedMatchesDefault(t *testing.T) {
	var cfg EngineConfig
	if err := yaml.Unmarshal(defaultEngineYAML, &cfg); err != nil {
		t.Fatalf("embedded defaults do not parse: %v", err)
	}
	def := Default()
	if cfg.Session != def.Session {
		t.Errorf("session = %+v, want %+v", cfg.Session, def.Session)
	}
	if cfg.Physics != def.Physics {
		t.Errorf("physics = %+v, want %+v", cfg.Physics, def.Physics)
	}
	if cfg.Games != def.Games {
		t.Errorf("games = %+v, want %+v", cfg.Games, def.Games)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("embedded defaults invalid: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	src := `
session:
  tick_rate: 30
  input_delay: 0
physics:
  gravity: {x: "0", y: "-20.5"}
games:
  platformer:
    speed: "90"
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Session.TickRate != 30 || cfg.Session.InputDelay != 0 {
		t.Errorf("session = %+v", cfg.Session)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Session.Players != 2 || cfg.Session.MaxPredictionWindow != 12 {
		t.Errorf("defaults lost: %+v", cfg.Session)
	}
	if cfg.Physics.Gravity.Y != maths.MustParse("-20.5") {
		t.Errorf("gravity = %s", cfg.Physics.Gravity)
	}
	if cfg.Games.Platformer.Speed != maths.FromInt(90) {
		t.Errorf("speed = %s", cfg.Games.Platformer.Speed)
	}
	if p := cfg.Params(); p.TicksPerSecond != 30 {
		t.Errorf("ticks per second = %d, want the tick rate", p.TicksPerSecond)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		src  string
	}{
		{"bad yaml", "session: [1, 2"},
		{"bad number", "physics:\n  gravity: {x: \"1e3\", y: \"0\"}\n"},
		{"zero players", "session:\n  players: 0\n"},
		{"check distance past window", "session:\n  max_prediction_window: 4\n  check_distance: 5\n"},
		{"zero grid cell", "physics:\n  integration:\n    grid_cell: \"0\"\n"},
		{"flat player", "games:\n  platformer:\n    player_size: {x: \"7\", y: \"0\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.src), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() accepted an invalid config")
			}
		})
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of a missing custom file should fail")
	}
}

func TestRuntime(t *testing.T) {
	rc := Default().Runtime(120, 40)
	if rc.ScreenW != 120 || rc.ScreenH != 40 || rc.TickRate != 60 || rc.CheckDistance != 2 {
		t.Errorf("runtime = %+v", rc)
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		preset NetworkPreset
		delay  int
		window int
	}{
		{NetworkLocal, 2, 12},
		{NetworkLAN, 1, 8},
		{NetworkWAN, 2, 12},
		{NetworkLossy, 3, 20},
	}
	for _, tt := range tests {
		t.Run(tt.preset.String(), func(t *testing.T) {
			p, err := ParsePreset(tt.preset.String())
			if err != nil || p != tt.preset {
				t.Fatalf("ParsePreset(%q) = %v, %v", tt.preset, p, err)
			}
			cfg := Default()
			ApplyPreset(&cfg, p)
			if cfg.Session.InputDelay != tt.delay || cfg.Session.MaxPredictionWindow != tt.window {
				t.Errorf("session = %+v", cfg.Session)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset produced an invalid config: %v", err)
			}
		})
	}
	if _, err := ParsePreset("dialup"); err == nil {
		t.Error("unknown preset accepted")
	}
}
