package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/multiplayer"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/storage"
)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":23234").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.rollback/host_key.
	HostKeyPath string

	// DBPath is the path to the replay database.
	DBPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration

	// Engine is the configuration every session is built from.
	Engine config.EngineConfig

	// Latency is the emulated one-way input delay of online matches.
	Latency time.Duration

	Logger *log.Logger
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:     ":23234",
		DBPath:      "~/.rollback/replays.db",
		IdleTimeout: 30 * time.Minute,
		Engine:      config.Default(),
	}
}

// SSHServer wraps a Wish SSH server. Every connection gets its own
// sessions; two connections can be paired into an online match.
type SSHServer struct {
	config      SSHServerConfig
	server      *ssh.Server
	store       *storage.Store
	logger      *log.Logger
	sessions    *multiplayer.SessionRegistry
	coordinator *multiplayer.Coordinator
}

// NewSSHServer creates a new SSH server with the given configuration.
func NewSSHServer(cfg SSHServerConfig) (*SSHServer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "rollback-ssh",
		})
	}

	// Open storage
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Warn("could not open replay database", "error", err)
		// Continue without storage
		store = nil
	}

	sessions := multiplayer.NewSessionRegistry()
	coordCfg := multiplayer.DefaultCoordinatorConfig()
	coordCfg.TickRate = cfg.Engine.Session.TickRate
	coordCfg.Latency = cfg.Latency

	srv := &SSHServer{
		config:      cfg,
		store:       store,
		logger:      logger,
		sessions:    sessions,
		coordinator: multiplayer.NewCoordinator(coordCfg, sessions, logger.WithPrefix("lobby")),
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, ".rollback", "host_key")
	}

	// Ensure host key directory exists
	hostKeyDir := filepath.Dir(hostKeyPath)
	if mkdirErr := os.MkdirAll(hostKeyDir, 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", mkdirErr)
	}

	// Create Wish server options
	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.loggingMiddleware,
		),
	}

	// Create the server
	server, err := wish.NewServer(opts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// teaHandler creates a Bubble Tea program for each SSH session.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, ok := sshSession.Pty()
	if !ok {
		s.logger.Warn("no PTY requested", "user", sshSession.User())
		return nil, nil
	}

	id := multiplayer.SessionID(fmt.Sprintf("%s@%s", sshSession.User(), sshSession.RemoteAddr()))
	conn := multiplayer.NewChannelSession(id, 16)
	if err := s.sessions.Register(conn); err != nil {
		s.logger.Warn("rejecting session", "id", id, "err", err)
		return nil, nil
	}
	go func() {
		<-sshSession.Context().Done()
		s.coordinator.Send(multiplayer.SessionDisconnectedMsg{SessionID: id})
		conn.Close()
		s.sessions.Unregister(conn)
	}()

	model := NewSessionModel(sshSession.Context(), s.store, s.config.Engine, pty.Window.Width, pty.Window.Height,
		s.logger.With("user", sshSession.User()), s.coordinator, conn)

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until shutdown.
func (s *SSHServer) ListenAndServe() error {
	s.logger.Info("starting SSH server", "address", s.config.Address)
	s.coordinator.Start()

	// Setup signal handling for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	<-done
	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.coordinator.Stop()
	err := s.server.Shutdown(ctx)
	if s.store != nil {
		s.store.Close()
	}
	return err
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}

// running is a session whose runner goroutine is live.
type running struct {
	launch Launch
	sess   *session.Session
	runner *session.Runner
	errc   chan error
	// match is set for online sessions.
	match *multiplayer.MatchStartedEvent
}

// SessionModel manages the full connection flow: menu -> (lobby ->) game
// -> menu. This is the top-level model used for SSH sessions.
type SessionModel struct {
	ctx         context.Context
	store       *storage.Store
	config      config.EngineConfig
	width       int
	height      int
	logger      *log.Logger
	coordinator *multiplayer.Coordinator
	conn        *multiplayer.ChannelSession
	menu        MenuModel
	lobby       *OnlineLobbyModel
	gameModel   *GameModel
	run         *running
	quitting    bool
}

// NewSessionModel creates a new session model. coordinator and conn may be
// nil, which hides the online mode.
func NewSessionModel(ctx context.Context, store *storage.Store, cfg config.EngineConfig, width, height int,
	logger *log.Logger, coordinator *multiplayer.Coordinator, conn *multiplayer.ChannelSession,
) SessionModel {
	online := coordinator != nil && conn != nil
	return SessionModel{
		ctx:         ctx,
		store:       store,
		config:      cfg,
		width:       width,
		height:      height,
		logger:      logger,
		coordinator: coordinator,
		conn:        conn,
		menu:        NewMenuModel(width, height, false, online),
	}
}

// Init initializes the session.
func (m SessionModel) Init() tea.Cmd {
	if m.conn != nil {
		return tea.Batch(m.menu.Init(), waitForEvent(m.conn.Events()))
	}
	return m.menu.Init()
}

// Update handles messages for the session.
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle window resize globally
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = wsm.Width
		m.height = wsm.Height
	}

	if evt, ok := msg.(multiplayer.SessionEvent); ok {
		return m.handleEvent(evt)
	}

	switch {
	case m.gameModel != nil:
		return m.updateGame(msg)
	case m.lobby != nil:
		return m.updateLobby(msg)
	default:
		return m.updateMenu(msg)
	}
}

// handleEvent routes a coordinator event and waits for the next one.
func (m SessionModel) handleEvent(evt multiplayer.SessionEvent) (tea.Model, tea.Cmd) {
	next := waitForEvent(m.conn.Events())

	if ended, ok := evt.(multiplayer.MatchEndedEvent); ok {
		if m.gameModel != nil && m.run != nil && m.run.match != nil && m.run.match.MatchID == ended.MatchID {
			m.gameModel.SetStatus(fmt.Sprintf("%s, playing on alone", ended.Reason))
		}
		return m, next
	}

	if m.lobby == nil {
		return m, next
	}
	newLobby, cmd := m.lobby.Update(evt)
	if lobby, ok := newLobby.(OnlineLobbyModel); ok {
		m.lobby = &lobby
	}
	if started := m.lobby.Started(); started != nil {
		m.lobby = nil
		m, cmd = m.startOnline(*started)
	}
	return m, tea.Batch(cmd, next)
}

// updateMenu handles updates when in menu mode.
func (m SessionModel) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	newMenu, cmd := m.menu.Update(msg)
	if menuModel, ok := newMenu.(MenuModel); ok {
		m.menu = menuModel
	}

	if m.menu.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}

	selected := m.menu.Selected()
	if selected == nil {
		return m, cmd
	}

	if selected.Mode == session.ModeRemote {
		lobby := NewOnlineLobbyModel(selected.GameID, selected.Title, m.conn.ID(), m.coordinator, m.width, m.height)
		m.lobby = &lobby
		return m, lobby.Init()
	}

	l := m.launch(selected.GameID, selected.Mode)
	sess, err := NewSession(l)
	if err != nil {
		m.logger.Error("could not start session", "game", l.GameID, "error", err)
		m.menu = m.newMenu()
		return m, nil
	}
	return m.start(selected.Title, l, sess, 0, "", nil)
}

// updateLobby handles updates when in the online lobby.
func (m SessionModel) updateLobby(msg tea.Msg) (tea.Model, tea.Cmd) {
	newLobby, cmd := m.lobby.Update(msg)
	if lobby, ok := newLobby.(OnlineLobbyModel); ok {
		m.lobby = &lobby
	}

	if m.lobby.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}
	if m.lobby.BackToMenu() {
		m.lobby = nil
		m.menu = m.newMenu()
		return m, m.menu.Init()
	}
	return m, cmd
}

// startOnline builds this connection's side of a match.
func (m SessionModel) startOnline(evt multiplayer.MatchStartedEvent) (SessionModel, tea.Cmd) {
	l := m.launch(evt.GameID, session.ModeRemote)
	sess, err := NewPeerSession(l, evt.Seat, evt.Match)
	if err != nil {
		m.logger.Error("could not start online session", "game", l.GameID, "error", err)
		m.coordinator.Send(multiplayer.LeaveMatchMsg{SessionID: m.conn.ID(), MatchID: evt.MatchID})
		m.menu = m.newMenu()
		return m, nil
	}
	status := fmt.Sprintf("online %s as player %d", evt.Code, evt.Seat+1)
	model, cmd := m.start(evt.GameID, l, sess, evt.Seat, status, &evt)
	return model.(SessionModel), cmd
}

// start runs sess in the background and shows it.
func (m SessionModel) start(title string, l Launch, sess *session.Session, local int, status string,
	match *multiplayer.MatchStartedEvent,
) (tea.Model, tea.Cmd) {
	runner := session.NewRunner(sess)
	if match != nil {
		match.Match.Attach(match.Seat, runner)
	}
	r := &running{launch: l, sess: sess, runner: runner, errc: make(chan error, 1), match: match}
	go func() { r.errc <- runner.Run(m.ctx) }()

	gm := NewGameModel(GameOptions{
		Title:  title,
		Runner: runner,
		Buffer: sess.Buffer(),
		Local:  local,
		FPS:    m.config.Session.TickRate,
		Input:  m.config.Input,
		Width:  m.width,
		Height: m.height,
		Status: status,
	})
	m.gameModel = &gm
	m.run = r
	return m, m.gameModel.Init()
}

func (m SessionModel) launch(gameID string, mode session.Mode) Launch {
	return Launch{
		GameID: gameID,
		Mode:   mode,
		Config: m.config,
		Width:  m.width,
		Height: m.height,
		Logger: m.logger,
		Store:  m.store,
	}
}

func (m SessionModel) newMenu() MenuModel {
	return NewMenuModel(m.width, m.height, false, m.coordinator != nil && m.conn != nil)
}

// updateGame handles updates when in game mode.
func (m SessionModel) updateGame(msg tea.Msg) (tea.Model, tea.Cmd) {
	newModel, cmd := m.gameModel.Update(msg)
	if gameModel, ok := newModel.(GameModel); ok {
		m.gameModel = &gameModel
	}

	if m.gameModel.BackToMenu() || m.gameModel.IsQuitting() {
		m.finish()
	}

	if m.gameModel.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}

	if m.gameModel.BackToMenu() {
		m.gameModel = nil
		m.menu = m.newMenu()
		return m, m.menu.Init()
	}

	return m, cmd
}

// finish leaves the match, waits for the runner to exit and stores the
// replay.
func (m *SessionModel) finish() {
	if m.run == nil {
		return
	}
	r := m.run
	m.run = nil
	r.runner.Stop()
	if r.match != nil {
		m.coordinator.Send(multiplayer.LeaveMatchMsg{SessionID: m.conn.ID(), MatchID: r.match.MatchID})
	}
	if err := <-r.errc; err != nil {
		m.logger.Warn("session ended with error", "game", r.launch.GameID, "error", err)
	}
	if m.store == nil || r.sess.Tick() == 0 {
		return
	}
	id, err := SaveReplay(m.store, r.launch, r.sess)
	if err != nil {
		m.logger.Warn("could not save replay", "error", err)
		return
	}
	m.logger.Info("replay saved", "id", id, "game", r.launch.GameID, "ticks", r.sess.Tick())
}

// View renders the current view.
func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}
	switch {
	case m.gameModel != nil:
		return m.gameModel.View()
	case m.lobby != nil:
		return m.lobby.View()
	default:
		return m.menu.View()
	}
}
