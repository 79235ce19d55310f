package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/platform/tui"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

var (
	flagTicks      int
	flagSeed       uint64
	flagRemoteLag  int
	flagSaveReplay bool
)

var synctestCmd = &cobra.Command{
	Use:   "synctest <game>",
	Short: "Run a headless sync test",
	Long: `Simulate a game with pseudo-random inputs as fast as possible.

Without --remote-lag every tick is rolled back check_distance ticks and
resimulated; any checksum difference is a desync and is stored in the
replay database together with the inputs that produced it.

With --remote-lag N player 1 is treated as remote and its inputs arrive N
ticks late, so the session predicts and rolls back continuously. The final
state is then compared with a plain replay of the confirmed inputs.

Examples:
  rollback synctest platformer
  rollback synctest basic --ticks 5000 --seed 7
  rollback synctest platformer --remote-lag 6 --preset wan`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncTest,
}

func init() {
	synctestCmd.Flags().IntVar(&flagTicks, "ticks", 600, "Number of ticks to simulate")
	synctestCmd.Flags().Uint64Var(&flagSeed, "seed", 1, "Seed of the input generator")
	synctestCmd.Flags().IntVar(&flagRemoteLag, "remote-lag", 0, "Delay of player 1's inputs in ticks (0 = sync test)")
	synctestCmd.Flags().BoolVar(&flagSaveReplay, "save", false, "Store the run as a replay")
}

// inputScript produces held inputs that change every few ticks.
type inputScript struct {
	rng  *rand.Rand
	held []core.InputRecord
}

func newInputScript(seed uint64, players int) *inputScript {
	return &inputScript{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		held: make([]core.InputRecord, players),
	}
}

func (s *inputScript) next(player int) core.InputRecord {
	if s.rng.IntN(8) == 0 {
		s.held[player] = core.InputRecord(s.rng.IntN(16))
	}
	return s.held[player]
}

func runSyncTest(cmd *cobra.Command, args []string) error {
	gameID := args[0]
	if !registry.Exists(gameID) {
		return fmt.Errorf("unknown game %q, run 'rollback list' to see available games", gameID)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger().With("game", gameID)

	store, err := storage.Open(flagDBPath)
	if err != nil {
		logger.Warn("could not open replay database", "error", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	l := tui.Launch{
		GameID: gameID,
		Mode:   session.ModeSyncTest,
		Config: cfg,
		Width:  80,
		Height: 24,
		Logger: logger,
		Store:  store,
	}

	var sess *session.Session
	if flagRemoteLag > 0 {
		l.Mode = session.ModeRemote
		sess, err = newRemoteSession(l)
	} else {
		sess, err = tui.NewSession(l)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	script := newInputScript(flagSeed, cfg.Session.Players)
	runErr := drive(sess, script, cfg, flagTicks, flagRemoteLag)
	elapsed := time.Since(start)

	if runErr != nil && !errors.Is(runErr, session.ErrDesync) {
		return runErr
	}

	sum, err := sess.Engine().Checksum()
	if err != nil {
		return err
	}
	logger.Info("run finished",
		"mode", l.Mode,
		"ticks", sess.Tick(),
		"rollbacks", sess.Store().Rollbacks(),
		"checksum", fmt.Sprintf("%016x", sum),
		"elapsed", elapsed.Round(time.Millisecond),
	)

	if runErr == nil && flagRemoteLag > 0 {
		runErr = verifyAgainstReplay(l, sess.Recording(), sum, logger)
	}

	if flagSaveReplay && store != nil {
		id, saveErr := tui.SaveReplay(store, l, sess)
		if saveErr != nil {
			logger.Warn("could not save replay", "error", saveErr)
		} else {
			logger.Info("replay saved", "id", id)
		}
	}
	return runErr
}

// newRemoteSession builds a session where player 1 is fed by drive as if
// by a transport.
func newRemoteSession(l tui.Launch) (*session.Session, error) {
	if l.Config.Session.Players < 2 {
		return nil, fmt.Errorf("--remote-lag needs at least 2 players")
	}
	if flagRemoteLag >= l.Config.Session.MaxPredictionWindow {
		return nil, fmt.Errorf("--remote-lag %d must be below the prediction window %d",
			flagRemoteLag, l.Config.Session.MaxPredictionWindow)
	}
	eng, err := registry.Build(l.GameID, l.Config, l.Logger)
	if err != nil {
		return nil, err
	}
	return session.New(eng, session.Options{
		Config: l.Config.Runtime(l.Width, l.Height),
		Mode:   session.ModeRemote,
		Remote: []int{1},
		Logger: l.Logger,
	})
}

// drive steps sess for ticks ticks. Player 1's input of tick t is delivered
// at tick t+lag when lag is positive.
func drive(sess *session.Session, script *inputScript, cfg config.EngineConfig, ticks, lag int) error {
	var pending []core.InputRecord
	for i := 0; i < ticks; i++ {
		for p := 0; p < cfg.Session.Players; p++ {
			rec := script.next(p)
			if sess.IsRemote(p) {
				pending = append(pending, rec)
				continue
			}
			if err := sess.AddLocalInput(p, rec); err != nil {
				return err
			}
		}
		if lag > 0 && len(pending) > lag {
			at := int64(i - lag)
			if err := sess.AddRemoteInput(1, at, pending[0]); err != nil {
				return err
			}
			pending = pending[1:]
		}
		if err := sess.Step(); err != nil {
			return err
		}
	}
	// Deliver the tail so the last ticks are confirmed too.
	for k, rec := range pending {
		at := int64(ticks - len(pending) + k)
		if err := sess.AddRemoteInput(1, at, rec); err != nil {
			return err
		}
	}
	return sess.Reconcile()
}

// verifyAgainstReplay simulates the recorded inputs on a fresh engine and
// compares the final checksum.
func verifyAgainstReplay(l tui.Launch, inputs [][]core.InputRecord, want uint64, logger *log.Logger) error {
	eng, err := registry.Build(l.GameID, l.Config, logger)
	if err != nil {
		return err
	}
	got, err := session.Replay(eng, inputs, nil)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: rolled back run ended at %016x, replay at %016x", session.ErrDesync, want, got)
	}
	logger.Info("rolled back run matches replay", "ticks", len(inputs))
	return nil
}
