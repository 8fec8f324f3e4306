// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driveq/internal/ui/styles"
)

// =============================================================================
// TYPING INDICATOR
// =============================================================================

// TypingIndicator is the transient "AutoQuery is typing" line drawn after
// the last message while a request is outstanding. It is never stored in
// the transcript.
type TypingIndicator struct {
	spinner   spinner.Model
	label     string
	startTime time.Time
	active    bool
}

// NewTypingIndicator returns a stopped indicator with ASCII frames.
func NewTypingIndicator() TypingIndicator {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
		FPS:    time.Second / 6,
	}
	return TypingIndicator{spinner: s, label: "AutoQuery is typing"}
}

// Start shows the indicator with label and starts its animation.
func (t *TypingIndicator) Start(label string) tea.Cmd {
	if label != "" {
		t.label = label
	}
	if t.active {
		return nil
	}
	t.active = true
	t.startTime = time.Now()
	return t.spinner.Tick
}

// Stop hides the indicator.
func (t *TypingIndicator) Stop() {
	t.active = false
}

// Active reports whether the indicator is shown.
func (t TypingIndicator) Active() bool {
	return t.active
}

// Elapsed is the time since Start.
func (t TypingIndicator) Elapsed() time.Duration {
	if t.startTime.IsZero() {
		return 0
	}
	return time.Since(t.startTime)
}

// Update advances the animation. Ticks arriving after Stop end the loop.
func (t TypingIndicator) Update(msg tea.Msg) (TypingIndicator, tea.Cmd) {
	if !t.active {
		return t, nil
	}
	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	return t, cmd
}

// View renders the indicator, or "" when stopped.
func (t TypingIndicator) View(theme *styles.Theme) string {
	if !t.active {
		return ""
	}
	out := theme.ThinkingText.Render(t.label) + theme.Spinner.Render(t.spinner.View())
	if e := t.Elapsed(); e >= time.Second {
		out += theme.ThinkingTime.Render(" (" + FormatElapsed(e) + ")")
	}
	return out
}

// FormatElapsed renders a duration as "12s" or "1m05s".
func FormatElapsed(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return strconv.Itoa(seconds) + "s"
	}
	secs := seconds % 60
	pad := ""
	if secs < 10 {
		pad = "0"
	}
	return strconv.Itoa(seconds/60) + "m" + pad + strconv.Itoa(secs) + "s"
}
