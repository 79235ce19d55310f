package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/platform/tui"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

var (
	flagMode   string
	flagDebug  bool
	flagNoSave bool
)

var playCmd = &cobra.Command{
	Use:   "play [game]",
	Short: "Play a game",
	Long: `Start playing the specified game. Without a game, a menu lets you
pick one, switch between local and sync-test mode, and browse replays.

Controls:
  WASD/Arrows  - Move
  Tab          - Toggle debug shapes
  Ctrl+S       - Save screenshot
  Esc/B        - Back to menu
  Q/Ctrl+C     - Quit

Modes:
  local     - Every player is local, inputs are confirmed at once
  synctest  - Roll back and resimulate every tick, stop on desync

Examples:
  rollback play platformer
  rollback play basic --mode synctest
  rollback play platformer --preset wan --debug
  rollback play`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagMode, "mode", "local", "Session mode: local, synctest")
	playCmd.Flags().BoolVar(&flagDebug, "debug", false, "Start with debug shapes visible")
	playCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "Do not store a replay")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	// Get terminal size
	width, height := 80, 24 // Defaults
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width = w
		height = h
	}

	// Open replay storage
	var store *storage.Store
	if !flagNoSave {
		store, err = storage.Open(flagDBPath)
		if err != nil {
			logger.Warn("could not open replay database", "error", err)
			// Continue without storage
			store = nil
		}
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if len(args) == 1 {
		mode, modeErr := session.ParseMode(flagMode)
		if modeErr != nil {
			return modeErr
		}
		if !registry.Exists(args[0]) {
			return fmt.Errorf("unknown game %q, run 'rollback list' to see available games", args[0])
		}
		return playOnce(ctx, tui.Launch{
			GameID: args[0],
			Mode:   mode,
			Config: cfg,
			Width:  width,
			Height: height,
			Logger: logger,
			Store:  store,
		})
	}

	return menuLoop(ctx, cfg, store, logger, width, height)
}

// menuLoop shows the menu until the user quits.
func menuLoop(ctx context.Context, cfg config.EngineConfig, store *storage.Store, logger *log.Logger, width, height int) error {
	for {
		result, err := tui.RunMenu(width, height)
		if err != nil {
			return err
		}
		if result.Quit {
			return nil
		}
		width, height = result.Width, result.Height

		if result.WantsReplays {
			if store == nil {
				logger.Warn("replay database unavailable")
				continue
			}
			id, goBack, browseErr := tui.RunReplayBrowser(store, width, height)
			if browseErr != nil {
				return browseErr
			}
			if id != "" {
				if watchErr := watchReplay(store, id, logger, width, height); watchErr != nil {
					logger.Error("replay failed", "id", id, "error", watchErr)
				}
				continue
			}
			if !goBack {
				return nil
			}
			continue
		}

		err = playOnce(ctx, tui.Launch{
			GameID: result.GameID,
			Mode:   result.Mode,
			Config: cfg,
			Width:  width,
			Height: height,
			Logger: logger,
			Store:  store,
		})
		if err != nil {
			logger.Error("session ended with error", "game", result.GameID, "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func playOnce(ctx context.Context, l tui.Launch) error {
	// The TUI owns the terminal while playing.
	logger := l.Logger
	l.Logger = log.New(io.Discard)

	sess, err := tui.NewSession(l)
	if err != nil {
		return err
	}
	title := l.GameID
	for _, g := range registry.List() {
		if g.ID == l.GameID {
			title = g.Title
		}
	}

	playErr := tui.Play(ctx, sess, tui.GameOptions{
		Title:  title,
		FPS:    l.Config.Session.TickRate,
		Input:  l.Config.Input,
		Width:  l.Width,
		Height: l.Height,
		Debug:  flagDebug,
	})

	if l.Store != nil && sess.Tick() > 0 {
		id, saveErr := tui.SaveReplay(l.Store, l, sess)
		if saveErr != nil {
			logger.Warn("could not save replay", "error", saveErr)
		} else {
			logger.Info("replay saved", "id", id, "ticks", sess.Tick())
		}
	}
	return playErr
}
