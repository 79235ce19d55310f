// Package registry provides a global registry for game factories.
// Games register themselves in init() functions, allowing the CLI and the
// TUI to discover and build games without hardcoded dependencies.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/engine"
)

// Game populates an engine with its entities, stores and gameplay systems.
// All game state lives in the engine, so a game value itself is stateless
// and the same game can set up any number of engines.
type Game interface {
	// ID returns a unique identifier for this game (e.g., "basic").
	// Used for CLI commands and replay storage.
	ID() string

	// Title returns a human-readable name for display.
	Title() string

	// Setup registers the game's stores and systems on a fresh engine and
	// spawns its initial entities. It must be deterministic: the same
	// config always produces the same initial state.
	Setup(e *engine.Engine, cfg config.EngineConfig) error
}

// GameInfo contains metadata about a registered game.
type GameInfo struct {
	ID    string
	Title string
}

// Factory is a function that creates a new instance of a game.
type Factory func() Game

var (
	factories = make(map[string]Factory)
	titles    = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a game factory to the registry.
// Typically called from a game's init() function.
// Panics if a game with the same ID is already registered.
func Register(id string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[id]; exists {
		panic(fmt.Sprintf("registry: game %q already registered", id))
	}

	factories[id] = f

	// Get title by creating a temporary instance
	g := f()
	titles[id] = g.Title()
}

// List returns information about all registered games, sorted by ID.
func List() []GameInfo {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]GameInfo, 0, len(factories))
	for id := range factories {
		result = append(result, GameInfo{
			ID:    id,
			Title: titles[id],
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Create instantiates a new game by its ID.
// Returns an error if the game ID is not registered.
func Create(id string) (Game, error) {
	mu.RLock()
	defer mu.RUnlock()

	f, ok := factories[id]
	if !ok {
		return nil, fmt.Errorf("registry: unknown game %q", id)
	}

	return f(), nil
}

// Exists checks if a game with the given ID is registered.
func Exists(id string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := factories[id]
	return ok
}

// Build creates the game id and an engine set up for it from cfg.
func Build(id string, cfg config.EngineConfig, logger *log.Logger) (*engine.Engine, error) {
	g, err := Create(id)
	if err != nil {
		return nil, err
	}
	e := engine.New(cfg.EngineOptions(logger))
	if err := g.Setup(e, cfg); err != nil {
		return nil, fmt.Errorf("registry: setup %s: %w", id, err)
	}
	return e, nil
}
