// rollback runs and inspects deterministic rollback sessions in the terminal.
//
// Usage:
//
//	rollback list                - List available games
//	rollback play [game]         - Play a game (menu when no game is given)
//	rollback synctest <game>     - Run a headless sync test
//	rollback replays [game]      - List or browse stored replays
//	rollback replay <id>         - Verify or watch a stored replay
//	rollback serve               - Start SSH server for remote play
//	rollback bench <game>        - Measure simulation speed
//
// Global flags:
//
//	--config <path>          - Engine config YAML
//	--fps <rate>             - Override the tick rate
//	--prediction-window <n>  - Override the max prediction window
//	--input-delay <n>        - Override the input delay
//	--preset <name>          - Network preset: local, lan, wan, lossy
//	--db <path>              - Replay database (default: ~/.rollback/replays.db)
//	--log-level <level>      - debug, info, warn, error
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/rollback-engine/internal/config"

	// Import games to register them
	_ "github.com/vovakirdan/rollback-engine/internal/games/basic"
	_ "github.com/vovakirdan/rollback-engine/internal/games/platformer"
)

var (
	// Global flags
	flagConfig     string
	flagFPS        int
	flagWindow     int
	flagInputDelay int
	flagPreset     string
	flagDBPath     string
	flagLogLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Deterministic rollback sessions in your terminal",
	Long: `rollback runs fixed-point physics games on a rollback netcode core.
Every tick is simulated from inputs only, so runs can be rolled back,
replayed and checked for desyncs.

Available commands:
  list      - Show all available games
  play      - Play a game
  synctest  - Roll back and resimulate every tick, looking for desyncs
  replays   - List stored replays
  replay    - Verify or watch a replay
  serve     - Start SSH server for remote play
  bench     - Measure ticks per second

Examples:
  rollback list
  rollback play platformer
  rollback synctest platformer --ticks 600
  rollback replay 3f2a9c1e --watch
  rollback serve --ssh :2222`,
	SilenceUsage: true,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to engine config YAML")
	rootCmd.PersistentFlags().IntVar(&flagFPS, "fps", 0, "Tick rate override (0 = from config)")
	rootCmd.PersistentFlags().IntVar(&flagWindow, "prediction-window", 0, "Max prediction window override (0 = from config)")
	rootCmd.PersistentFlags().IntVar(&flagInputDelay, "input-delay", -1, "Input delay override (-1 = from config)")
	rootCmd.PersistentFlags().StringVar(&flagPreset, "preset", "local", "Network preset: local, lan, wan, lossy")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "~/.rollback/replays.db", "Path to replay database")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(synctestCmd)
	rootCmd.AddCommand(replaysCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(benchCmd)
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "rollback",
	})
	if lvl, err := log.ParseLevel(flagLogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", flagLogLevel)
	}
	return logger
}

// loadConfig loads the engine config and applies the preset and the
// command line overrides, in that order.
func loadConfig() (config.EngineConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	preset, err := config.ParsePreset(flagPreset)
	if err != nil {
		return cfg, err
	}
	config.ApplyPreset(&cfg, preset)
	if flagFPS > 0 {
		cfg.Session.TickRate = flagFPS
	}
	if flagWindow > 0 {
		cfg.Session.MaxPredictionWindow = flagWindow
		cfg.Session.CheckDistance = min(cfg.Session.CheckDistance, flagWindow)
	}
	if flagInputDelay >= 0 {
		cfg.Session.InputDelay = flagInputDelay
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
