package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered games",
	Long: `Shows every game built into the engine together with how many replays
and desync reports the replay database holds for it.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	games := registry.List()
	if len(games) == 0 {
		fmt.Println("No games registered.")
		return nil
	}

	// A missing or unreadable database only hides the counts.
	var stats map[string]*storage.GameStats
	if store, err := storage.Open(flagDBPath); err == nil {
		stats, err = store.GetAllGamesStats()
		if err != nil {
			newLogger().Warn("cannot read replay stats", "err", err)
		}
		store.Close()
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tREPLAYS\tTICKS\tDESYNCS")
	for _, g := range games {
		st, ok := stats[g.ID]
		if !ok {
			st = &storage.GameStats{}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", g.ID, g.Title, st.Replays, st.TotalTicks, st.Desyncs)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Run 'rollback play <id>' to play a game.")
	return nil
}
