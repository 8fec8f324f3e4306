// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/ui/components"
	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/upload"
	"github.com/jeranaias/driveq/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	main := m.viewport.View()
	if m.sidePanelVisible() {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, m.renderSidePanel())
	}

	parts := []string{m.renderHeader(), main}
	if m.info != nil {
		parts = append(parts, m.renderInfo())
	}
	if m.state.Notice != "" {
		parts = append(parts, m.theme.Notice.Render(util.TruncateWidth(m.state.Notice, m.width-2)))
	}
	parts = append(parts, m.renderInput(), m.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// refreshContent rebuilds the viewport from the drawn state, following the
// newest message unless the user has scrolled up.
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()

	var content string
	if len(m.state.Messages) == 0 {
		content = m.welcome.View(m.theme, m.viewport.Width)
	} else {
		content = m.render.transcript(m.theme, m.state.Messages, m.transcriptOptions())
	}
	if t := m.typing.View(m.theme); t != "" {
		content += "\n\n" + t
	}

	m.viewport.SetContent(content)
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) transcriptOptions() components.TranscriptOptions {
	return components.TranscriptOptions{
		Width:          m.viewport.Width - 1,
		ShowTimestamps: m.opts.ShowTimestamps,
		Markdown:       m.markdown,
	}
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("DriveQuery")
	sub := m.theme.HeaderSubtitle.Render("  ask your owner's manual")

	right := ""
	if host := backendHost(m.opts.BackendURL); host != "" {
		right = m.theme.Timestamp.Render(host)
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(sub) - lipgloss.Width(right) - 2
	if gap < 1 {
		right, gap = "", 1
	}
	line := title + sub + strings.Repeat(" ", gap) + right
	return m.theme.Header.Width(m.width).MaxWidth(m.width).Render(line)
}

func backendHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

func (m Model) renderSidePanel() string {
	w := m.shell.Widget()
	f, _ := w.Selected()
	up := components.RenderUploadPanel(m.theme, components.UploadView{
		State:    w.State(),
		File:     f,
		Hovering: w.Hovering(),
		Policy:   w.Policy(),
	}, panelWidth)
	docs := components.RenderDocuments(m.theme, m.state.Documents, m.state.UseDocuments, panelWidth)

	return lipgloss.NewStyle().
		MaxHeight(m.viewport.Height).
		Render(lipgloss.JoinVertical(lipgloss.Left, up, docs))
}

func (m Model) renderInfo() string {
	if m.info.title == docsTitle && m.info.body == "" {
		return components.RenderDocuments(m.theme, m.state.Documents, m.state.UseDocuments, m.width)
	}

	lines := strings.Split(m.info.body, "\n")
	if len(lines) > maxInfoLines {
		more := len(lines) - maxInfoLines
		lines = append(lines[:maxInfoLines], fmt.Sprintf("... (%d more)", more))
	}
	body := m.theme.PanelTitle.Render(m.info.title) + "  " + m.theme.Hint.Render("esc to close") +
		"\n" + strings.Join(lines, "\n")
	return m.theme.Panel.Width(max(m.width-2, 10)).Render(body)
}

func (m Model) renderInput() string {
	style := m.theme.InputContainer
	if m.chatBusy || m.state.Loading {
		style = m.theme.InputBusy
	}
	return style.Width(max(m.width-2, 10)).Render(m.input.View())
}

func (m Model) renderStatus() string {
	busy := ""
	switch {
	case m.state.Loading:
		busy = "asking"
	case m.state.Uploading:
		busy = "uploading"
	}
	if f, ok := m.shell.Widget().Selected(); ok && m.shell.Widget().State() == upload.FileSelected && busy == "" {
		busy = "attached " + util.MiddleTruncate(f.Name, 24)
	}

	info := components.StatusInfo{
		SessionID:    m.state.SessionID,
		Documents:    len(m.state.Documents),
		UseDocuments: m.state.UseDocuments,
		Streaming:    m.shell.Streaming(),
		Busy:         busy,
		Message:      m.statusText,
	}
	return components.RenderStatusBar(m.theme, info, components.DefaultShortcuts, m.width)
}

// =============================================================================
// RENDER CACHE
// =============================================================================

// renderCache keeps each message's last rendering so a streamed chunk only
// re-renders the message it grew. Glamour is too slow to run over the whole
// transcript at frame rate.
type renderCache struct {
	entries map[string]cachedRender
}

type cachedRender struct {
	content   string
	streaming bool
	width     int
	stamps    bool
	out       string
}

func newRenderCache() *renderCache {
	return &renderCache{entries: make(map[string]cachedRender)}
}

func (c *renderCache) transcript(theme *styles.Theme, msgs model.Transcript, opts components.TranscriptOptions) string {
	parts := make([]string, len(msgs))
	live := make(map[string]bool, len(msgs))
	for i, msg := range msgs {
		live[msg.ID] = true
		e, ok := c.entries[msg.ID]
		if ok && e.content == msg.Content && e.streaming == msg.IsStreaming &&
			e.width == opts.Width && e.stamps == opts.ShowTimestamps {
			parts[i] = e.out
			continue
		}
		out := components.RenderMessage(theme, msg, opts)
		c.entries[msg.ID] = cachedRender{
			content:   msg.Content,
			streaming: msg.IsStreaming,
			width:     opts.Width,
			stamps:    opts.ShowTimestamps,
			out:       out,
		}
		parts[i] = out
	}
	for id := range c.entries {
		if !live[id] {
			delete(c.entries, id)
		}
	}
	return strings.Join(parts, "\n\n")
}
