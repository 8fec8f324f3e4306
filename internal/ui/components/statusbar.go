// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusInfo is the data shown along the bottom of the screen.
type StatusInfo struct {
	SessionID    string
	Documents    int
	UseDocuments bool
	Streaming    bool
	Busy         string // "", "asking" or "uploading"
	Message      string // transient status text, e.g. "Saved"
}

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are shown when there is room.
var DefaultShortcuts = []Shortcut{
	{"enter", "send"},
	{"alt+enter", "newline"},
	{"ctrl+b", "docs"},
	{"/help", "commands"},
	{"ctrl+c", "quit"},
}

// RenderStatusBar draws the status line at width columns. Hints are dropped
// right to left until the line fits.
func RenderStatusBar(theme *styles.Theme, info StatusInfo, shortcuts []Shortcut, width int) string {
	var left []string
	if info.SessionID != "" {
		left = append(left, "session "+util.TruncateRunes(info.SessionID, 8))
	}

	docs := fmt.Sprintf("%d docs", info.Documents)
	if info.UseDocuments {
		left = append(left, theme.StatusOn.Render(docs))
	} else {
		left = append(left, theme.StatusOff.Render(docs+" (off)"))
	}
	if info.Streaming {
		left = append(left, "stream")
	}
	if info.Busy != "" {
		left = append(left, theme.WarningStyle.Render(info.Busy))
	}
	if info.Message != "" {
		left = append(left, info.Message)
	}
	leftText := strings.Join(left, " | ")

	if width <= 0 {
		return theme.StatusBar.Render(leftText)
	}

	avail := width - lipgloss.Width(leftText) - 4
	hints := shortcuts
	var right string
	for len(hints) > 0 {
		right = renderHints(theme, hints)
		if lipgloss.Width(right) <= avail {
			break
		}
		hints = hints[:len(hints)-1]
		right = ""
	}

	gap := width - lipgloss.Width(leftText) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	line := leftText + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(width).MaxWidth(width).Render(line)
}

func renderHints(theme *styles.Theme, hints []Shortcut) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = theme.ShortcutKey.Render(h.Key) + " " + theme.ShortcutDesc.Render(h.Desc)
	}
	return strings.Join(parts, "  ")
}
