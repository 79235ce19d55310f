package basic

import (
	"testing"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/ecs"
	"github.com/vovakirdan/rollback-engine/internal/engine"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

func build(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := registry.Build(gameID, config.Default(), nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return e
}

func playerPos(t *testing.T, e *engine.Engine, handle int) maths.Vector2 {
	t.Helper()
	var pos maths.Vector2
	found := false
	ecs.Each2(e.Stores().Players, e.Stores().Transforms, func(_ ecs.Entity, p *engine.Player, tr *transform.Transform2) {
		if p.Handle == handle {
			pos, found = tr.Pos, true
		}
	})
	if !found {
		t.Fatalf("player %d not spawned", handle)
	}
	return pos
}

func inputs(recs ...core.InputRecord) []core.PlayerInput {
	out := make([]core.PlayerInput, len(recs))
	for i, r := range recs {
		out[i] = core.PlayerInput{Record: r, Status: core.StatusConfirmed}
	}
	return out
}

func TestRegistered(t *testing.T) {
	if !registry.Exists(gameID) {
		t.Fatal("basic game not registered")
	}
	g, err := registry.Create(gameID)
	if err != nil {
		t.Fatal(err)
	}
	if g.Title() != gameTitle {
		t.Errorf("Title() = %q", g.Title())
	}
}

func TestSpawnPositions(t *testing.T) {
	e := build(t)
	for p, want := range []maths.Vector2{maths.V2(0, 0), maths.V2(40, 0)} {
		if got := playerPos(t, e, p); got != want {
			t.Errorf("player %d at %s, want %s", p, got, want)
		}
	}
	if e.Physics().BodyCount() != 0 {
		t.Error("basic players must not have physics bodies")
	}
}

func TestMovement(t *testing.T) {
	tests := []struct {
		name  string
		input core.InputRecord
		ticks int
		want  maths.Vector2
	}{
		{"idle", 0, 5, maths.V2(0, 0)},
		{"right", core.InputRight, 5, maths.V2(10, 0)},
		{"left", core.InputLeft, 3, maths.V2(-6, 0)},
		{"up right", core.InputUp | core.InputRight, 4, maths.V2(8, 8)},
		{"down", core.InputDown, 2, maths.V2(0, -4)},
		{"opposites cancel", core.InputLeft | core.InputRight, 5, maths.V2(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := build(t)
			for i := 0; i < tt.ticks; i++ {
				if err := e.Advance(inputs(tt.input, 0)); err != nil {
					t.Fatal(err)
				}
			}
			if got := playerPos(t, e, 0); got != tt.want {
				t.Errorf("player 0 at %s, want %s", got, tt.want)
			}
			if got := playerPos(t, e, 1); got != maths.V2(40, 0) {
				t.Errorf("idle player moved to %s", got)
			}
		})
	}
}

func TestSyncTest(t *testing.T) {
	cfg := config.Default()
	cfg.Session.InputDelay = 0
	s, err := session.New(build(t), session.Options{Config: cfg.Runtime(80, 24), Mode: session.ModeSyncTest})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 90; i++ {
		_ = s.AddLocalInput(0, core.InputRecord(i/7%16))
		_ = s.AddLocalInput(1, core.InputRecord(i/5%16))
		if err := s.Step(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}
