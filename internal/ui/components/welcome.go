// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveq/internal/ui/styles"
)

// ExamplePrompts are offered on the empty transcript.
var ExamplePrompts = []string{
	"How often to change spark plugs?",
	"Torque spec for front axle nut",
	"Fuse box diagram location",
}

var welcomeSteps = []string{
	"Upload your owner's manual: /upload <path>, or drop the file here",
	"Ask about maintenance, specs or features",
	"Get answers that cite the manual pages they came from",
}

// Welcome is the onboarding view shown until the first message.
type Welcome struct {
	// Selected is the highlighted example prompt, or -1 for none.
	Selected int
}

// NewWelcome returns a welcome view with nothing highlighted.
func NewWelcome() Welcome {
	return Welcome{Selected: -1}
}

// Next highlights the following prompt, wrapping around.
func (w Welcome) Next() Welcome {
	w.Selected = (w.Selected + 1) % len(ExamplePrompts)
	return w
}

// Prev highlights the previous prompt, wrapping around.
func (w Welcome) Prev() Welcome {
	if w.Selected <= 0 {
		w.Selected = len(ExamplePrompts) - 1
	} else {
		w.Selected--
	}
	return w
}

// Reset clears the highlight.
func (w Welcome) Reset() Welcome {
	w.Selected = -1
	return w
}

// Prompt returns the highlighted prompt.
func (w Welcome) Prompt() (string, bool) {
	if w.Selected < 0 || w.Selected >= len(ExamplePrompts) {
		return "", false
	}
	return ExamplePrompts[w.Selected], true
}

// View draws the onboarding box centered in width columns.
func (w Welcome) View(theme *styles.Theme, width int) string {
	var b strings.Builder
	b.WriteString(theme.WelcomeTitle.Render("Ask your owner's manual"))
	b.WriteString("\n\n")
	for i, step := range welcomeSteps {
		b.WriteString(theme.WelcomeStepNum.Render(strconv.Itoa(i+1) + "."))
		b.WriteString(" ")
		b.WriteString(theme.WelcomeStep.Render(step))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.Hint.Render("Try one (Tab to pick, Enter to ask):"))
	b.WriteString("\n")
	for i, p := range ExamplePrompts {
		style := theme.PromptItem
		marker := "  "
		if i == w.Selected {
			style = theme.PromptSelected
			marker = "> "
		}
		b.WriteString(marker + style.Render(p))
		if i < len(ExamplePrompts)-1 {
			b.WriteString("\n")
		}
	}

	box := theme.WelcomeBox.Render(b.String())
	if width <= 0 {
		return box
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}
