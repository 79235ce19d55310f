package tui

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/rollback-engine/internal/config"
	"github.com/vovakirdan/rollback-engine/internal/registry"
	"github.com/vovakirdan/rollback-engine/internal/session"
)

// MenuItem represents a selectable game in the menu.
type MenuItem struct {
	GameID string
	Title  string
	Mode   session.Mode
}

// menuModes are the session modes offered in the menu. Remote sessions
// need the lobby of the SSH server.
var menuModes = []session.Mode{session.ModeLocal, session.ModeSyncTest}

// modeLabel names a mode in the menu.
func modeLabel(m session.Mode) string {
	if m == session.ModeRemote {
		return "online"
	}
	return m.String()
}

// MenuModel is the Bubble Tea model for the game picker menu.
type MenuModel struct {
	items        []MenuItem
	cursor       int
	modes        []session.Mode
	mode         int // index into modes
	width        int
	height       int
	keyMapper    *KeyMapper
	quitting     bool
	selected     *MenuItem // Set when user selects a game
	openReplays  bool      // True if user pressed Tab for the replay browser
	allowReplays bool
}

// NewMenuModel creates a new menu model. allowOnline adds the online mode,
// which pairs two connections through a lobby.
func NewMenuModel(width, height int, allowReplays, allowOnline bool) MenuModel {
	games := registry.List()
	items := make([]MenuItem, 0, len(games))
	for _, g := range games {
		items = append(items, MenuItem{GameID: g.ID, Title: g.Title})
	}

	modes := menuModes
	if allowOnline {
		modes = append(slices.Clone(menuModes), session.ModeRemote)
	}

	return MenuModel{
		items:        items,
		modes:        modes,
		width:        width,
		height:       height,
		keyMapper:    NewKeyMapper(config.Default().Input),
		allowReplays: allowReplays,
	}
}

// Init initializes the menu model.
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input for menu navigation.
func (m MenuModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.keyMapper.MapKeyToMenuAction(msg)

	switch action {
	case MenuActionQuit:
		m.quitting = true
		return m, tea.Quit

	case MenuActionUp:
		if m.cursor > 0 {
			m.cursor--
		}

	case MenuActionDown:
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case MenuActionLeft:
		m.mode = (m.mode + len(m.modes) - 1) % len(m.modes)

	case MenuActionRight:
		m.mode = (m.mode + 1) % len(m.modes)

	case MenuActionSelect:
		if len(m.items) > 0 {
			selected := m.items[m.cursor]
			selected.Mode = m.modes[m.mode]
			m.selected = &selected
			return m, tea.Quit // Exit menu to start game
		}

	case MenuActionReplays:
		if m.allowReplays {
			m.openReplays = true
			return m, tea.Quit // Exit menu to show replays
		}
	}

	return m, nil
}

// View renders the menu.
func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Title
	title := "  R O L L B A C K  "
	b.WriteString("\n")
	b.WriteString(centerText(title, m.width))
	b.WriteString("\n\n")

	b.WriteString(centerText("Select a game", m.width))
	b.WriteString("\n\n")

	// Game list
	for i, item := range m.items {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%s", cursor, item.Title)
		b.WriteString(centerText(line, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(centerText(fmt.Sprintf("Mode: < %s >", modeLabel(m.modes[m.mode])), m.width))
	b.WriteString("\n\n")

	// Footer with controls
	controls := "Up/Down: Navigate  |  Left/Right: Mode  |  Enter: Play  |  Q: Quit"
	if m.allowReplays {
		controls = "Up/Down: Navigate  |  Left/Right: Mode  |  Enter: Play  |  Tab: Replays  |  Q: Quit"
	}
	b.WriteString(centerText(controls, m.width))
	b.WriteString("\n")

	return b.String()
}

// Selected returns the selected menu item, or nil if none selected.
func (m MenuModel) Selected() *MenuItem {
	return m.selected
}

// IsQuitting returns true if user requested to quit.
func (m MenuModel) IsQuitting() bool {
	return m.quitting
}

// WantsReplays returns true if user requested the replay browser.
func (m MenuModel) WantsReplays() bool {
	return m.openReplays
}

// Size returns the current terminal size (may have been updated by resize).
func (m MenuModel) Size() (int, int) {
	return m.width, m.height
}

// centerText centers text within given width.
func centerText(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}

// MenuResult holds the result of running the menu.
type MenuResult struct {
	GameID       string
	Mode         session.Mode
	Width        int
	Height       int
	WantsReplays bool
	Quit         bool
}

// RunMenu runs the menu and returns the selection result.
func RunMenu(width, height int) (MenuResult, error) {
	p := tea.NewProgram(
		NewMenuModel(width, height, true, false),
		tea.WithAltScreen(),
	)

	finalModel, err := p.Run()
	if err != nil {
		return MenuResult{Width: width, Height: height}, err
	}

	m, ok := finalModel.(MenuModel)
	if !ok {
		return MenuResult{Width: width, Height: height, Quit: true}, nil
	}

	result := MenuResult{}
	result.Width, result.Height = m.Size()

	switch {
	case m.WantsReplays():
		result.WantsReplays = true
	case m.Selected() != nil:
		result.GameID = m.Selected().GameID
		result.Mode = m.Selected().Mode
	default:
		result.Quit = true
	}
	return result, nil
}
