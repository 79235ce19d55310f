package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/rollback-engine/internal/platform/tui"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

var (
	flagLimit   int
	flagBrowse  bool
	flagDesyncs bool
)

var replaysCmd = &cobra.Command{
	Use:   "replays [game]",
	Short: "List stored replays",
	Long: `Display the most recent replays, optionally for one game only.

Examples:
  rollback replays
  rollback replays platformer --limit 20
  rollback replays --desyncs
  rollback replays --browse`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplays,
}

func init() {
	replaysCmd.Flags().IntVar(&flagLimit, "limit", 10, "Maximum number of rows")
	replaysCmd.Flags().BoolVar(&flagBrowse, "browse", false, "Open the interactive replay browser")
	replaysCmd.Flags().BoolVar(&flagDesyncs, "desyncs", false, "List stored desync reports instead")
}

func runReplays(cmd *cobra.Command, args []string) error {
	gameID := ""
	if len(args) == 1 {
		gameID = args[0]
		if !registry.Exists(gameID) {
			return fmt.Errorf("unknown game %q, run 'rollback list' to see available games", gameID)
		}
	}

	// Open replay storage
	store, err := storage.Open(flagDBPath)
	if err != nil {
		return fmt.Errorf("opening replay database: %w", err)
	}
	defer store.Close()

	if flagBrowse {
		return browse(store)
	}
	if flagDesyncs {
		return printDesyncs(store, gameID)
	}

	replays, err := store.RecentReplays(gameID, flagLimit)
	if err != nil {
		return fmt.Errorf("retrieving replays: %w", err)
	}

	if len(replays) == 0 {
		fmt.Println("No replays yet.")
		return nil
	}

	fmt.Println("Recent replays")
	fmt.Println()
	fmt.Printf("  %-36s  %-10s  %-8s  %8s  %-16s  %s\n", "ID", "Game", "Mode", "Ticks", "Checksum", "Date")
	fmt.Printf("  %-36s  %-10s  %-8s  %8s  %-16s  %s\n", "--", "----", "----", "-----", "--------", "----")
	for _, r := range replays {
		fmt.Printf("  %-36s  %-10s  %-8s  %8d  %016x  %s\n",
			r.ID, r.GameID, r.Mode, r.Ticks, r.Checksum, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	fmt.Println("Run 'rollback replay <id>' to verify a replay.")
	return nil
}

func printDesyncs(store *storage.Store, gameID string) error {
	reports, err := store.Desyncs(gameID, flagLimit)
	if err != nil {
		return fmt.Errorf("retrieving desyncs: %w", err)
	}
	if len(reports) == 0 {
		fmt.Println("No desyncs recorded.")
		return nil
	}

	fmt.Println("Desync reports")
	fmt.Println()
	fmt.Printf("  %-36s  %-10s  %8s  %-16s  %-16s  %s\n", "ID", "Game", "Tick", "Want", "Got", "Date")
	fmt.Printf("  %-36s  %-10s  %8s  %-16s  %-16s  %s\n", "--", "----", "----", "----", "---", "----")
	for _, d := range reports {
		fmt.Printf("  %-36s  %-10s  %8d  %016x  %016x  %s\n",
			d.ID, d.GameID, d.Tick, d.Want, d.Got, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func browse(store *storage.Store) error {
	width, height := 80, 24
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width, height = w, h
	}
	logger := newLogger()
	for {
		id, _, err := tui.RunReplayBrowser(store, width, height)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		if err := watchReplay(store, id, logger, width, height); err != nil {
			logger.Error("replay failed", "id", id, "error", err)
		}
	}
}
