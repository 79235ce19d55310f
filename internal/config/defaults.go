package config

import (
	_ "embed"

	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/physics"
)

//go:embed defaults/engine.yaml
var defaultEngineYAML []byte

// Default returns the default engine configuration.
func Default() EngineConfig {
	params := physics.DefaultParams()
	return EngineConfig{
		Session: SessionConfig{
			TickRate:            60,
			Players:             2,
			MaxPredictionWindow: 12,
			InputDelay:          2,
			CheckDistance:       2,
		},
		Physics: PhysicsConfig{
			Gravity:     physics.DefaultGravity(),
			Integration: params,
		},
		Games: GamesConfig{
			Basic: BasicConfig{
				Step:    maths.FromInt(2),
				Spacing: 40,
			},
			Platformer: PlatformerConfig{
				Speed:      maths.FromInt(180),
				PlayerSize: maths.V2(7, 14),
				Spacing:    40,
				Layer:      1,
				LayerMask:  1,
				Arena:      true,
				Crates:     2,
			},
		},
		Input: InputConfig{
			Up:    []string{"up", "w"},
			Down:  []string{"down", "s"},
			Left:  []string{"left", "a"},
			Right: []string{"right", "d"},
		},
	}
}
