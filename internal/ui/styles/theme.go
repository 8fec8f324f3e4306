// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds every style the TUI renders with.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// Transcript
	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	ErrorLabel      lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	SystemLine      lipgloss.Style
	Sources         lipgloss.Style
	Timestamp       lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputBusy      lipgloss.Style
	Notice         lipgloss.Style

	// Typing indicator
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ThinkingTime lipgloss.Style

	// Empty state
	WelcomeBox     lipgloss.Style
	WelcomeTitle   lipgloss.Style
	WelcomeStepNum lipgloss.Style
	WelcomeStep    lipgloss.Style
	PromptItem     lipgloss.Style
	PromptSelected lipgloss.Style
	Hint           lipgloss.Style

	// Side panels: upload drop zone and document list
	Panel        lipgloss.Style
	PanelActive  lipgloss.Style
	PanelTitle   lipgloss.Style
	DocName      lipgloss.Style
	DocMeta      lipgloss.Style
	UploadStatus lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusOn     lipgloss.Style
	StatusOff    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
}

// NewTheme builds a theme. mode is auto, dark or light; anything else is
// treated as auto. Forcing a mode also tells lipgloss which side of each
// AdaptiveColor to use.
func NewTheme(mode string) *Theme {
	var isDark bool
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: lipgloss.ColorProfile(),
	}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue)
	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Blue)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.ErrorLabel = lipgloss.NewStyle().Bold(true).Foreground(Rose)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)
	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(ErrorBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ErrorBubbleBorder).
		BorderLeft(true).
		PaddingLeft(1)
	t.SystemLine = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)
	t.Sources = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Blue).
		Padding(0, 1)
	t.InputBusy = t.InputContainer.
		BorderForeground(OverlayDim)
	t.Notice = lipgloss.NewStyle().
		Foreground(Rose).
		PaddingLeft(1)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.ThinkingText = lipgloss.NewStyle().Foreground(TextSecondary)
	t.ThinkingTime = lipgloss.NewStyle().Foreground(TextMuted)

	// Empty state
	t.WelcomeBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 2)
	t.WelcomeTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue)
	t.WelcomeStepNum = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.WelcomeStep = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.PromptItem = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)
	t.PromptSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Blue).
		Bold(true).
		Padding(0, 1)
	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Panels
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelActive = t.Panel.
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Cyan)
	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)
	t.DocName = lipgloss.NewStyle().Foreground(TextPrimary)
	t.DocMeta = lipgloss.NewStyle().Foreground(TextMuted)
	t.UploadStatus = lipgloss.NewStyle().Foreground(Cyan)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusOn = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusOff = lipgloss.NewStyle().Foreground(TextMuted)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.SuccessStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
}

// SetSize records the terminal size for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode is the responsive breakpoint for the current width.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)

// GetLayoutMode returns the layout for the current width. Side panels are
// only drawn in LayoutWide.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}
