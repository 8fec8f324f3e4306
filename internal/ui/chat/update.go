// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/session"
	"github.com/jeranaias/driveq/internal/upload"
)

const statusTTL = 4 * time.Second

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := m.update(msg)
	m.layout()
	return m, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case StateChangedMsg:
		cmds := []tea.Cmd{m.waitForChange()}
		if s, ok := m.buffer.Flush(); ok {
			cmds = append(cmds, m.apply(s))
		} else if m.buffer.Pending() > 0 && !m.tickPending {
			m.tickPending = true
			cmds = append(cmds, streamTickCmd(m.buffer.Interval()))
		}
		return m, tea.Batch(cmds...)

	case StreamTickMsg:
		m.tickPending = false
		if s, ok := m.buffer.ForceFlush(); ok {
			out := m.apply(s)
			return m, out
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.typing, cmd = m.typing.Update(msg)
		if m.typing.Active() {
			m.refreshContent()
		}
		return m, cmd

	case ChatDoneMsg:
		m.chatBusy = false
		m.chatCancel.cancel()
		cmd := m.sync()
		if errors.Is(msg.Err, session.ErrBusy) {
			out := tea.Batch(cmd, m.setStatus("Still waiting for the last answer"))
			return m, out
		}
		return m, cmd

	case UploadDoneMsg:
		m.uploadBusy = false
		m.uploadCancel.cancel()
		out := m.sync()
		return m, out

	case DocumentsDoneMsg, ResetDoneMsg:
		out := m.sync()
		return m, out

	case SearchDoneMsg:
		m.info = searchPanel(msg)
		return m, nil

	case StatsDoneMsg:
		m.info = statsPanel(msg)
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			m.log.Warn("history save failed", "error", msg.Err)
			out := m.setStatus("Save failed: " + msg.Err.Error())
			return m, out
		}
		m.convID = msg.ID
		m.activity.MarkClean()
		if msg.Auto {
			return m, nil
		}
		out := m.setStatus("Saved as " + msg.ID)
		return m, out

	case ExportedMsg:
		if msg.Err != nil {
			out := m.setStatus("Export failed: " + msg.Err.Error())
			return m, out
		}
		out := m.setStatus("Exported to " + msg.Path)
		return m, out

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.statusText = ""
		}
		return m, nil

	case session.TickMsg:
		out := m.activity.HandleTick()
		return m, out

	case session.AutoSaveMsg:
		out := m.saveCmd("", true)
		return m, out
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sync draws the store's current state now, dropping any held frame, so a
// finished workflow is shown without waiting for the next tick.
func (m *Model) sync() tea.Cmd {
	m.buffer.Reset()
	return m.apply(m.shell.Store().Snapshot())
}

// apply makes s the drawn state.
func (m *Model) apply(s session.State) tea.Cmd {
	prev := m.state
	m.state = s

	if len(s.Messages) != len(prev.Messages) || (len(s.Messages) > 0 && s.Messages.Last().Content != prev.Messages.Last().Content) {
		m.activity.Touch()
	}
	if s.SessionID != prev.SessionID || (len(s.Messages) == 0 && len(prev.Messages) > 0) {
		// New conversation: the next save starts a new history entry.
		m.convID = ""
		m.convTitle = ""
		m.activity.MarkClean()
	}

	var cmd tea.Cmd
	switch {
	case s.Loading:
		cmd = m.typing.Start("AutoQuery is typing")
	case s.Uploading:
		cmd = m.typing.Start("Uploading")
	default:
		m.typing.Stop()
	}
	m.refreshContent()
	return cmd
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.statusSeq++
	m.statusText = text
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return statusExpiredMsg{seq: seq} })
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.Paste {
		return m.handlePaste(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.chatCancel.cancel() || m.uploadCancel.cancel() {
			out := m.setStatus("Cancelled")
			return m, out
		}
		m.quitting = true
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		return m.handleCancel()

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.UploadFile):
		out := m.uploadSelectedCmd()
		return m, out

	case key.Matches(msg, m.keys.ToggleDocs):
		on := !m.state.UseDocuments
		m.shell.SetUseDocuments(on)
		cmd := m.sync()
		out := tea.Batch(cmd, m.setStatus(docsStatus(on)))
		return m, out

	case key.Matches(msg, m.keys.TogglePanel):
		m.showPanel = !m.showPanel
		return m, nil

	case key.Matches(msg, m.keys.Help):
		if m.info != nil && m.info.title == helpTitle {
			m.info = nil
		} else {
			m.info = m.helpPanel()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.NextPrompt, m.keys.PrevPrompt):
		if len(m.state.Messages) == 0 && strings.TrimSpace(m.input.Value()) == "" {
			if key.Matches(msg, m.keys.NextPrompt) {
				m.welcome = m.welcome.Next()
			} else {
				m.welcome = m.welcome.Prev()
			}
			m.refreshContent()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.shell.Widget().SetHover(upload.LooksLikePath(m.input.Value()))
	return m, cmd
}

// handleCancel peels back one layer: an in-flight request, then the info
// panel, then an attached file.
func (m Model) handleCancel() (Model, tea.Cmd) {
	if m.chatCancel.cancel() {
		out := m.setStatus("Cancelled")
		return m, out
	}
	if m.uploadCancel.cancel() {
		out := m.setStatus("Upload cancelled")
		return m, out
	}
	if m.info != nil {
		m.info = nil
		return m, nil
	}
	w := m.shell.Widget()
	if w.State() == upload.FileSelected {
		w.Reset()
		out := m.setStatus("Attachment cleared")
		return m, out
	}
	return m, nil
}

// handlePaste treats a pasted path to an existing file as a drop.
func (m Model) handlePaste(msg tea.KeyMsg) (Model, tea.Cmd) {
	text := string(msg.Runes)
	if upload.LooksLikePath(text) {
		return m.attach(text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// attach stages a file in the upload widget.
func (m Model) attach(path string) (Model, tea.Cmd) {
	m.shell.Widget().SetHover(false)
	f, err := m.shell.Select(upload.CleanPath(path))
	cmd := m.sync()
	if err != nil {
		if errors.Is(err, upload.ErrBusy) {
			out := tea.Batch(cmd, m.setStatus("An upload is already running"))
			return m, out
		}
		return m, cmd
	}
	m.info = nil
	out := tea.Batch(cmd, m.setStatus("Attached "+f.Name+"; ctrl+u to upload"))
	return m, out
}

// submit handles Enter.
func (m Model) submit() (Model, tea.Cmd) {
	draft := m.input.Value()
	text := strings.TrimSpace(draft)

	if text == "" {
		p, ok := m.welcome.Prompt()
		if !ok || len(m.state.Messages) > 0 {
			return m, nil
		}
		text = p
	}

	if upload.LooksLikePath(text) {
		m.input.Reset()
		return m.attach(text)
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.handleCommand(text)
	}

	if m.chatBusy || m.state.Loading {
		// Inert while a request is in flight; the draft stays.
		return m, nil
	}

	m.input.Reset()
	m.welcome = m.welcome.Reset()
	m.info = nil
	out := m.sendCmd(text)
	return m, out
}

func docsStatus(on bool) string {
	if on {
		return "Answering from your documents"
	}
	return "Answering without documents"
}

// errorText is the user-facing text for a workflow error that the shell did
// not already record.
func errorText(err error, fallback string) string {
	return api.UserMessage(err, fallback)
}
