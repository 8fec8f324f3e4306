// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/util"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// TranscriptOptions controls how messages are drawn.
type TranscriptOptions struct {
	Width          int
	ShowTimestamps bool
	// Markdown renders assistant text; nil draws it as wrapped plain text.
	Markdown *Markdown
}

const (
	maxBubbleWidth = 100
	streamCursor   = "▌"
)

// bubbleWidth is the content width inside a bubble for a given terminal
// width, leaving room for the border, padding and the opposite gutter.
func bubbleWidth(total int) int {
	w := total - 8
	if w > maxBubbleWidth {
		w = maxBubbleWidth
	}
	if w < 10 {
		w = 10
	}
	return w
}

// RenderTranscript draws every message in order, separated by blank lines.
// An empty transcript draws nothing; the caller shows the welcome state.
func RenderTranscript(theme *styles.Theme, msgs model.Transcript, opts TranscriptOptions) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, RenderMessage(theme, m, opts))
	}
	return strings.Join(parts, "\n\n")
}

// RenderMessage draws one message in its role's style.
func RenderMessage(theme *styles.Theme, msg model.Message, opts TranscriptOptions) string {
	switch msg.Role {
	case model.RoleUser:
		return renderUser(theme, msg, opts)
	case model.RoleAssistant:
		return renderAssistant(theme, msg, opts)
	case model.RoleError:
		return renderError(theme, msg, opts)
	default:
		return renderSystem(theme, msg, opts)
	}
}

func header(label lipgloss.Style, msg model.Message, theme *styles.Theme, opts TranscriptOptions) string {
	h := label.Render(msg.Role.DisplayName())
	if opts.ShowTimestamps && !msg.Timestamp.IsZero() {
		h += " " + theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}
	return h
}

func renderUser(theme *styles.Theme, msg model.Message, opts TranscriptOptions) string {
	w := bubbleWidth(opts.Width)
	body := lipgloss.NewStyle().Width(min(w, lipgloss.Width(msg.Content))).Render(msg.Content)
	block := lipgloss.JoinVertical(lipgloss.Right,
		header(theme.UserLabel, msg, theme, opts),
		theme.UserBubble.Render(body),
	)
	if opts.Width <= 0 {
		return block
	}
	return lipgloss.PlaceHorizontal(opts.Width, lipgloss.Right, block)
}

func renderAssistant(theme *styles.Theme, msg model.Message, opts TranscriptOptions) string {
	w := bubbleWidth(opts.Width)

	var body string
	switch {
	case msg.IsStreaming:
		body = lipgloss.NewStyle().Width(w).Render(msg.Content + streamCursor)
	case opts.Markdown != nil:
		body = opts.Markdown.Render(msg.Content, w)
	default:
		body = lipgloss.NewStyle().Width(w).Render(msg.Content)
	}

	lines := []string{header(theme.AssistantLabel, msg, theme, opts), theme.AssistantBubble.Render(body)}
	if src := SourcesLine(msg.Sources, w); src != "" {
		lines = append(lines, theme.Sources.Render(src))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderError(theme *styles.Theme, msg model.Message, opts TranscriptOptions) string {
	w := bubbleWidth(opts.Width)
	body := lipgloss.NewStyle().Width(w).Render(msg.Content)
	return lipgloss.JoinVertical(lipgloss.Left,
		header(theme.ErrorLabel, msg, theme, opts),
		theme.ErrorBubble.Render(body),
	)
}

func renderSystem(theme *styles.Theme, msg model.Message, opts TranscriptOptions) string {
	text := msg.Content
	if opts.ShowTimestamps && !msg.Timestamp.IsZero() {
		text += "  " + theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}
	line := theme.SystemLine.Render("* " + text)
	if opts.Width <= 0 {
		return line
	}
	return lipgloss.PlaceHorizontal(opts.Width, lipgloss.Center, line)
}

// SourcesLine renders citations as "Sources: a, b" within width columns.
// Long filenames are middle-truncated and overflow becomes "+N more".
func SourcesLine(sources []string, width int) string {
	if len(sources) == 0 {
		return ""
	}
	const prefix = "Sources: "
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = util.MiddleTruncate(s, 40)
	}
	if width <= 0 {
		return prefix + strings.Join(names, ", ")
	}
	return prefix + util.JoinFit(names, ", ", width-len(prefix))
}
