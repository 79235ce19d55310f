package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/engine"
	"github.com/vovakirdan/rollback-engine/internal/session"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

// GameModel presents a running session. It samples the keyboard once per
// frame, sends the local player's input to the runner and draws the latest
// published frame. It never touches the session directly.
type GameModel struct {
	title      string
	runner     *session.Runner
	buf        *transform.Buffer
	local      int
	fps        int
	screen     *core.Screen
	viewport   *core.Viewport
	keyMapper  *KeyMapper
	adapter    core.InputAdapter
	hold       *KeyHold
	frame      transform.Frame
	status     string
	debug      bool
	quitting   bool
	backToMenu bool
}

// GameOptions configures a GameModel.
type GameOptions struct {
	Title  string
	Runner *session.Runner
	Buffer *transform.Buffer
	// Local is the player handle driven by this keyboard.
	Local  int
	FPS    int
	Input  config.InputConfig
	Width  int
	Height int
	Debug  bool
	// Status is shown under the header.
	Status string
}

// NewGameModel creates a presenter for a session driven by opts.Runner.
func NewGameModel(opts GameOptions) GameModel {
	return GameModel{
		title:     opts.Title,
		runner:    opts.Runner,
		buf:       opts.Buffer,
		local:     opts.Local,
		fps:       opts.FPS,
		screen:    core.NewScreen(opts.Width, opts.Height),
		keyMapper: NewKeyMapper(opts.Input),
		adapter:   core.NewInputAdapter(core.DefaultBindings()),
		hold:      NewKeyHold(holdFrames(opts.FPS)),
		debug:     opts.Debug,
		status:    opts.Status,
	}
}

// Init starts the render loop.
func (m GameModel) Init() tea.Cmd {
	return tickCmd(m.fps)
}

// Update handles messages and updates the model state.
func (m GameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.screen.Resize(msg.Width, msg.Height)
		m.viewport = nil
		return m, nil

	case TickMsg:
		return m.handleTick()
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m GameModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+s" {
		m.saveScreenshot()
		return m, nil
	}
	if k, ok := m.keyMapper.MapDirection(msg); ok {
		m.hold.Press(k)
		return m, nil
	}

	switch m.keyMapper.MapAction(msg) {
	case core.ActionQuit:
		m.quitting = true
		m.runner.Stop()
		return m, tea.Quit
	case core.ActionBack:
		m.backToMenu = true
		m.runner.Stop()
		return m, nil
	case core.ActionDebug:
		m.debug = !m.debug
	}
	return m, nil
}

// handleTick sends the sampled input and picks up the latest frame.
func (m GameModel) handleTick() (tea.Model, tea.Cmd) {
	select {
	case <-m.runner.Done():
		// The session stopped on its own, e.g. after a desync.
		m.backToMenu = true
		return m, nil
	default:
	}

	m.runner.SendInput(m.local, m.adapter.Read(m.hold.Sample()))
	m.frame, _ = m.buf.Read()
	if m.viewport == nil && len(m.frame.Items) > 0 {
		vp := fitViewport(m.frame, m.screen.Width(), m.screen.Height())
		m.viewport = &vp
	}
	return m, tickCmd(m.fps)
}

// saveScreenshot saves the current screen to a file.
func (m *GameModel) saveScreenshot() {
	m.draw()

	// Create screenshots directory
	dir := filepath.Join(os.Getenv("HOME"), ".rollback", "screenshots")
	//nolint:errcheck // Best-effort directory creation
	os.MkdirAll(dir, 0o755)

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%d_%s.txt", m.title, m.frame.Tick, timestamp)

	//nolint:errcheck // Best-effort save, game continues regardless
	os.WriteFile(filepath.Join(dir, filename), []byte(m.screen.String()), 0o600)
}

func (m *GameModel) draw() {
	vp := core.NewViewport(m.screen.Width(), m.screen.Height(), core.DefaultUnitsPerCell)
	if m.viewport != nil {
		vp = *m.viewport
	}
	DrawFrame(m.screen, m.frame, FrameView{Title: m.title, Viewport: vp, Debug: m.debug, Status: m.status})
}

// View renders the latest frame.
func (m GameModel) View() string {
	if m.quitting {
		return ""
	}
	m.draw()
	return RenderScreen(m.screen)
}

// SetStatus replaces the status line.
func (m *GameModel) SetStatus(status string) {
	m.status = status
}

// IsQuitting returns true if user requested to quit entirely.
func (m GameModel) IsQuitting() bool {
	return m.quitting
}

// BackToMenu returns true if the game ended without a quit request.
func (m GameModel) BackToMenu() bool {
	return m.backToMenu
}

// Play runs a session with a terminal presenter until the user quits or
// the session fails. The runner is started and stopped here.
func Play(ctx context.Context, sess *session.Session, opts GameOptions) error {
	runner := session.NewRunner(sess)
	opts.Runner = runner
	opts.Buffer = sess.Buffer()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- runner.Run(ctx) }()

	p := tea.NewProgram(NewGameModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := p.Run()
	runner.Stop()
	if err := <-errc; err != nil {
		return err
	}
	if uiErr != nil && ctx.Err() == nil {
		return uiErr
	}
	return nil
}

// WatchModel plays recorded inputs back at the tick rate.
type WatchModel struct {
	title    string
	eng      *engine.Engine
	inputs   [][]core.InputRecord
	fps      int
	want     uint64
	status   string
	screen   *core.Screen
	viewport *core.Viewport
	paused   bool
	debug    bool
	quitting bool
	err      error
}

// NewWatchModel creates a replay viewer for a freshly built engine.
func NewWatchModel(title string, eng *engine.Engine, inputs [][]core.InputRecord, want uint64, fps, width, height int) WatchModel {
	return WatchModel{
		title:  title,
		eng:    eng,
		inputs: inputs,
		fps:    fps,
		want:   want,
		screen: core.NewScreen(width, height),
	}
}

// Init starts playback.
func (m WatchModel) Init() tea.Cmd {
	return tickCmd(m.fps)
}

// Update handles messages.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
		case "tab":
			m.debug = !m.debug
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.screen.Resize(msg.Width, msg.Height)
		m.viewport = nil
		return m, nil

	case TickMsg:
		if !m.paused {
			m.step()
		}
		if f := m.eng.Frame(); m.viewport == nil && len(f.Items) > 0 {
			vp := fitViewport(f, m.screen.Width(), m.screen.Height())
			m.viewport = &vp
		}
		return m, tickCmd(m.fps)
	}
	return m, nil
}

func (m *WatchModel) step() {
	t := m.eng.Tick()
	if m.err != nil || t >= int64(len(m.inputs)) {
		return
	}
	row := make([]core.PlayerInput, len(m.inputs[t]))
	for p, r := range m.inputs[t] {
		row[p] = core.PlayerInput{Record: r, Status: core.StatusConfirmed}
	}
	if err := m.eng.Advance(row); err != nil {
		m.err = err
		m.status = "replay failed: " + err.Error()
		return
	}
	if m.eng.Tick() == int64(len(m.inputs)) {
		sum, err := m.eng.Checksum()
		switch {
		case err != nil:
			m.status = "checksum failed: " + err.Error()
		case sum == m.want:
			m.status = fmt.Sprintf("replay verified: checksum %016x", sum)
		default:
			m.status = fmt.Sprintf("replay DIVERGED: checksum %016x, recorded %016x", sum, m.want)
		}
	}
}

// View renders the replayed frame.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	f := m.eng.Frame()
	vp := core.NewViewport(m.screen.Width(), m.screen.Height(), core.DefaultUnitsPerCell)
	if m.viewport != nil {
		vp = *m.viewport
	}
	status := m.status
	if status == "" {
		status = fmt.Sprintf("replaying %d/%d", m.eng.Tick(), len(m.inputs))
		if m.paused {
			status += " (paused)"
		}
	}
	DrawFrame(m.screen, f, FrameView{Title: m.title, Viewport: vp, Debug: m.debug, Status: status})
	return RenderScreen(m.screen)
}

// Err returns the error that stopped playback, if any.
func (m WatchModel) Err() error {
	return m.err
}

// Watch plays a replay back in the terminal.
func Watch(title string, eng *engine.Engine, inputs [][]core.InputRecord, want uint64, fps, width, height int) error {
	p := tea.NewProgram(NewWatchModel(title, eng, inputs, want, fps, width, height), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if wm, ok := final.(WatchModel); ok {
		return wm.Err()
	}
	return nil
}
