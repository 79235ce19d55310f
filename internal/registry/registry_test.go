package registry_test

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/config"
	_ "github.com/vovakirdan/rollback-engine/internal/games/basic"
	_ "github.com/vovakirdan/rollback-engine/internal/games/platformer"
	"github.com/vovakirdan/rollback-engine/internal/registry"
)

func TestList(t *testing.T) {
	games := registry.List()
	if len(games) < 2 {
		t.Fatalf("List() = %v", games)
	}
	for i := 1; i < len(games); i++ {
		if games[i-1].ID >= games[i].ID {
			t.Errorf("List() not sorted: %v", games)
		}
	}
	for _, id := range []string{"basic", "platformer"} {
		if !registry.Exists(id) {
			t.Errorf("%s not registered", id)
		}
	}
	for _, g := range games {
		if g.Title == "" {
			t.Errorf("%s has no title", g.ID)
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering basic twice did not panic")
		}
	}()
	g, err := registry.Create("basic")
	if err != nil {
		t.Fatal(err)
	}
	registry.Register("basic", func() registry.Game { return g })
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	logger := log.New(io.Discard)

	if _, err := registry.Build("nope", cfg, logger); err == nil {
		t.Error("building an unknown game succeeded")
	}

	// Two engines built from the same config start identical.
	for _, id := range []string{"basic", "platformer"} {
		t.Run(id, func(t *testing.T) {
			a, err := registry.Build(id, cfg, logger)
			if err != nil {
				t.Fatal(err)
			}
			b, err := registry.Build(id, cfg, logger)
			if err != nil {
				t.Fatal(err)
			}
			sa, err := a.Checksum()
			if err != nil {
				t.Fatal(err)
			}
			sb, _ := b.Checksum()
			if sa != sb || a.Tick() != 0 {
				t.Errorf("checksums %x and %x at tick %d", sa, sb, a.Tick())
			}
		})
	}
}
