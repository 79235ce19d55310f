package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/platform/tui"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

var flagWatch bool

var replayCmd = &cobra.Command{
	Use:   "replay <id>",
	Short: "Verify or watch a stored replay",
	Long: `Simulate a stored replay from its recorded inputs and configuration
and check that it ends at the recorded checksum. A prefix of the ID is
enough when it is unambiguous.

Examples:
  rollback replay 3f2a9c1e
  rollback replay 3f2a9c1e --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&flagWatch, "watch", false, "Play the replay back in the terminal")
}

func runReplay(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(flagDBPath)
	if err != nil {
		return fmt.Errorf("opening replay database: %w", err)
	}
	defer store.Close()

	logger := newLogger()
	id, err := resolveReplayID(store, args[0])
	if err != nil {
		return err
	}

	if flagWatch {
		width, height := 80, 24
		if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
			width, height = w, h
		}
		return watchReplay(store, id, logger, width, height)
	}

	r, err := store.Replay(id)
	if err != nil {
		return err
	}
	cfg, err := replayConfig(r)
	if err != nil {
		return err
	}
	eng, err := registry.Build(r.GameID, cfg, logger)
	if err != nil {
		return err
	}
	got, err := session.Replay(eng, r.Inputs, nil)
	if err != nil {
		return err
	}
	if got != r.Checksum {
		return fmt.Errorf("%w: replay %s ended at %016x, recorded %016x", session.ErrDesync, r.ID, got, r.Checksum)
	}
	logger.Info("replay verified", "id", r.ID, "game", r.GameID, "ticks", r.Ticks(), "checksum", fmt.Sprintf("%016x", got))
	return nil
}

// resolveReplayID expands an ID prefix against the recent replays.
func resolveReplayID(store *storage.Store, prefix string) (string, error) {
	if _, err := store.Replay(prefix); err == nil {
		return prefix, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	recent, err := store.RecentReplays("", 1000)
	if err != nil {
		return "", err
	}
	var match string
	for _, r := range recent {
		if !strings.HasPrefix(r.ID, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("replay prefix %q is ambiguous", prefix)
		}
		match = r.ID
	}
	if match == "" {
		return "", fmt.Errorf("replay %q: %w", prefix, storage.ErrNotFound)
	}
	return match, nil
}

// replayConfig decodes the configuration a replay was recorded with.
func replayConfig(r *storage.Replay) (config.EngineConfig, error) {
	if len(r.Config) == 0 {
		return config.Default(), nil
	}
	cfg, err := config.Parse(r.Config)
	if err != nil {
		return cfg, fmt.Errorf("replay %s config: %w", r.ID, err)
	}
	return cfg, nil
}

func watchReplay(store *storage.Store, id string, logger *log.Logger, width, height int) error {
	r, err := store.Replay(id)
	if err != nil {
		return err
	}
	cfg, err := replayConfig(r)
	if err != nil {
		return err
	}
	eng, err := registry.Build(r.GameID, cfg, logger)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s replay %s", r.GameID, r.ID[:min(8, len(r.ID))])
	return tui.Watch(title, eng, r.Inputs, r.Checksum, cfg.Session.TickRate, width, height)
}
