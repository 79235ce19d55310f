package tui

import (
	"fmt"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/multiplayer"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

// Launch describes a session to start.
type Launch struct {
	GameID string
	Mode   session.Mode
	Config config.EngineConfig
	Width  int
	Height int
	Logger *log.Logger
	// Store receives desync reports and replays. May be nil.
	Store *storage.Store
}

// NewSession builds the game's engine and wraps it in a session. Desyncs
// found by a sync-test session are saved to the store.
func NewSession(l Launch) (*session.Session, error) {
	eng, err := registry.Build(l.GameID, l.Config, l.Logger)
	if err != nil {
		return nil, err
	}
	opts := session.Options{
		Config: l.Config.Runtime(l.Width, l.Height),
		Mode:   l.Mode,
		Logger: l.Logger,
	}
	if l.Store != nil {
		opts.OnDesync = func(r session.DesyncReport) {
			id, err := l.Store.SaveDesync(storage.DesyncRecord{
				GameID:  l.GameID,
				Tick:    r.Tick,
				Want:    r.Want,
				Got:     r.Got,
				State:   r.State,
				Players: l.Config.Session.Players,
				Inputs:  r.Inputs,
			})
			if err != nil {
				l.logger().Error("could not save desync report", "error", err)
				return
			}
			l.logger().Info("desync report saved", "id", id, "tick", r.Tick)
		}
	}
	return session.New(eng, opts)
}

// NewPeerSession builds the session of one seat of an online match. The
// other seat is remote; the local player's inputs are forwarded through
// match.
func NewPeerSession(l Launch, seat int, match *multiplayer.Match) (*session.Session, error) {
	if l.Config.Session.Players != multiplayer.Seats {
		return nil, fmt.Errorf("tui: online play needs %d players, config has %d", multiplayer.Seats, l.Config.Session.Players)
	}
	eng, err := registry.Build(l.GameID, l.Config, l.Logger)
	if err != nil {
		return nil, err
	}
	var remote []int
	for p := 0; p < multiplayer.Seats; p++ {
		if p != seat {
			remote = append(remote, p)
		}
	}
	return session.New(eng, session.Options{
		Config:       l.Config.Runtime(l.Width, l.Height),
		Mode:         session.ModeRemote,
		Remote:       remote,
		Logger:       l.Logger,
		OnLocalInput: match.Send,
	})
}

// SaveReplay stores the inputs the session simulated so far together with
// the configuration needed to simulate them again.
func SaveReplay(store *storage.Store, l Launch, sess *session.Session) (string, error) {
	if store == nil {
		return "", fmt.Errorf("tui: no replay store")
	}
	cfgYAML, err := yaml.Marshal(l.Config)
	if err != nil {
		return "", fmt.Errorf("tui: encode config: %w", err)
	}
	sum, err := sess.Engine().Checksum()
	if err != nil {
		return "", err
	}
	return store.SaveReplay(storage.Replay{
		GameID:   l.GameID,
		Mode:     l.Mode.String(),
		Players:  l.Config.Session.Players,
		Inputs:   sess.Recording(),
		Checksum: sum,
		Config:   cfgYAML,
	})
}

func (l Launch) logger() *log.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return log.Default()
}
