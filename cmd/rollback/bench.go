package main

import (
	"fmt"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/rollback-engine/internal/platform/tui"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
)

var (
	flagBenchTicks int
	flagProfile    string
	flagProfileDir string
	flagBenchMode  string
)

var benchCmd = &cobra.Command{
	Use:   "bench <game>",
	Short: "Measure simulation speed",
	Long: `Simulate a game headless with pseudo-random inputs and report ticks per
second. In synctest mode every tick also pays for its rollback check.

Examples:
  rollback bench platformer
  rollback bench platformer --mode synctest --ticks 20000
  rollback bench platformer --profile cpu --profile-dir ./prof`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&flagBenchTicks, "ticks", 10000, "Number of ticks to simulate")
	benchCmd.Flags().StringVar(&flagBenchMode, "mode", "local", "Session mode: local, synctest")
	benchCmd.Flags().StringVar(&flagProfile, "profile", "", "Write a profile: cpu, mem")
	benchCmd.Flags().StringVar(&flagProfileDir, "profile-dir", ".", "Directory for profile output")
}

func runBench(cmd *cobra.Command, args []string) error {
	gameID := args[0]
	if !registry.Exists(gameID) {
		return fmt.Errorf("unknown game %q, run 'rollback list' to see available games", gameID)
	}
	mode, err := session.ParseMode(flagBenchMode)
	if err != nil {
		return err
	}
	if mode == session.ModeRemote {
		return fmt.Errorf("bench runs local or synctest sessions, use 'rollback synctest --remote-lag' for remote")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger().With("game", gameID)

	sess, err := tui.NewSession(tui.Launch{
		GameID: gameID,
		Mode:   mode,
		Config: cfg,
		Width:  80,
		Height: 24,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	switch flagProfile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(flagProfileDir), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(flagProfileDir), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q", flagProfile)
	}

	script := newInputScript(1, cfg.Session.Players)
	start := time.Now()
	if err := drive(sess, script, cfg, flagBenchTicks, 0); err != nil {
		return err
	}
	elapsed := time.Since(start)

	sum, err := sess.Engine().Checksum()
	if err != nil {
		return err
	}
	perTick := elapsed / time.Duration(max(flagBenchTicks, 1))
	logger.Info("bench finished",
		"mode", mode,
		"ticks", sess.Tick(),
		"bodies", sess.Engine().Physics().BodyCount(),
		"elapsed", elapsed.Round(time.Millisecond),
		"per_tick", perTick,
		"ticks_per_sec", fmt.Sprintf("%.0f", float64(flagBenchTicks)/elapsed.Seconds()),
		"checksum", fmt.Sprintf("%016x", sum),
	)
	return nil
}
