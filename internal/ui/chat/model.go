// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveq/internal/logging"
	"github.com/jeranaias/driveq/internal/session"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/ui/components"
	"github.com/jeranaias/driveq/internal/ui/styles"
)

// Options configures the chat UI.
type Options struct {
	Theme *styles.Theme

	// History enables /save and autosave; nil disables both.
	History          *storage.Store
	AutoSave         bool
	AutoSaveInterval time.Duration

	ShowTimestamps bool
	Markdown       bool
	ExportDir      string
	BackendURL     string

	Logger *slog.Logger
}

// infoPanel is transient command output (help, search, stats) shown above
// the input until dismissed.
type infoPanel struct {
	title string
	body  string
}

// Model is the chat screen.
type Model struct {
	shell *session.Shell
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	log   *slog.Logger

	// state is the last snapshot drawn.
	state session.State

	viewport viewport.Model
	input    textarea.Model
	typing   components.TypingIndicator
	help     help.Model
	welcome  components.Welcome
	markdown *components.Markdown
	render   *renderCache

	buffer      *StreamingBuffer
	changes     chan struct{}
	done        chan struct{}
	unsubscribe func()
	tickPending bool

	chatCancel   *cancelManager
	uploadCancel *cancelManager
	chatBusy     bool
	uploadBusy   bool

	activity   *session.Activity
	convID     string
	convTitle  string
	statusText string
	statusSeq  int

	info      *infoPanel
	showPanel bool
	width     int
	height    int
	ready     bool
	quitting  bool
}

// Layout constants.
const (
	headerHeight = 1
	statusHeight = 1
	inputLines   = 3
	panelWidth   = 34
	maxInfoLines = 12
)

// New builds the chat model. It subscribes to the shell's store straight
// away; call Close when the program exits.
func New(shell *session.Shell, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeAuto)
	}
	log := opts.Logger
	if log == nil {
		log = logging.L()
	}
	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask about your vehicle..."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputLines)
	ta.KeyMap = inputKeyMap(keys)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	var md *components.Markdown
	if opts.Markdown {
		md = components.NewMarkdown(opts.Theme.GlamourStyle())
	}

	m := Model{
		shell:        shell,
		opts:         opts,
		theme:        opts.Theme,
		keys:         keys,
		log:          log,
		state:        shell.Store().Snapshot(),
		viewport:     viewport.New(0, 0),
		input:        ta,
		typing:       components.NewTypingIndicator(),
		help:         help.New(),
		welcome:      components.NewWelcome(),
		markdown:     md,
		render:       newRenderCache(),
		buffer:       NewStreamingBuffer(),
		changes:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		chatCancel:   newCancelManager(),
		uploadCancel: newCancelManager(),
		activity: session.NewActivity(session.ActivityConfig{
			AutoSaveEnabled:  opts.AutoSave && opts.History != nil,
			AutoSaveInterval: opts.AutoSaveInterval,
		}),
		showPanel: true,
	}
	m.help.ShowAll = true

	buf, ch := m.buffer, m.changes
	m.unsubscribe = shell.Store().Subscribe(func(s session.State) {
		buf.Write(s)
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return m
}

// Init loads the document list and starts listening to the store.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		m.waitForChange(),
		m.refreshDocumentsCmd(),
	}
	if m.opts.AutoSave && m.opts.History != nil {
		cmds = append(cmds, session.TickCmd(time.Second))
	}
	return tea.Batch(cmds...)
}

// Close detaches from the store and aborts anything in flight.
func (m Model) Close() {
	m.chatCancel.cancel()
	m.uploadCancel.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// waitForChange blocks until the store has news.
func (m Model) waitForChange() tea.Cmd {
	ch, done := m.changes, m.done
	return func() tea.Msg {
		select {
		case <-ch:
			return StateChangedMsg{}
		case <-done:
			return nil
		}
	}
}

// State returns the last snapshot the model drew.
func (m Model) State() session.State {
	return m.state
}

// Draft returns the current input text.
func (m Model) Draft() string {
	return m.input.Value()
}

// ConversationID is the history id autosave writes to, if any.
func (m Model) ConversationID() string {
	return m.convID
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) sidePanelVisible() bool {
	return m.showPanel && m.theme.GetLayoutMode() == styles.LayoutWide
}

// layout sizes the viewport and input for the current window and whatever
// optional rows (notice, info panel) are showing.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.theme.SetSize(m.width, m.height)

	inputWidth := m.width - 4
	m.input.SetWidth(max(inputWidth, 10))

	used := headerHeight + statusHeight + inputLines + 2
	if m.state.Notice != "" {
		used++
	}
	if m.info != nil {
		used += lipgloss.Height(m.renderInfo())
	}

	vw := m.width
	if m.sidePanelVisible() {
		vw -= panelWidth
	}
	vh := max(m.height-used, 3)

	widthChanged := m.viewport.Width != vw
	m.viewport.Width = vw
	m.viewport.Height = vh
	if widthChanged || !m.ready {
		m.ready = true
		m.refreshContent()
	}
}
