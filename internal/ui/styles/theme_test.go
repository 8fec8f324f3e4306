// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewThemeForcedModes(t *testing.T) {
	dark := NewTheme(ModeDark)
	if !dark.IsDark {
		t.Error("dark mode should set IsDark")
	}
	light := NewTheme("LIGHT")
	if light.IsDark {
		t.Error("light mode should clear IsDark")
	}
	if got := NewTheme("nonsense"); got == nil {
		t.Fatal("unknown mode should fall back to auto")
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserBubble", theme.UserBubble},
		{"AssistantBubble", theme.AssistantBubble},
		{"ErrorBubble", theme.ErrorBubble},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"WelcomeBox", theme.WelcomeBox},
		{"PanelActive", theme.PanelActive},
	}
	for _, s := range styles {
		if got := s.style.Render("test"); !strings.Contains(got, "test") {
			t.Errorf("%s rendered %q", s.name, got)
		}
	}
}

func TestGetLayoutMode(t *testing.T) {
	theme := NewTheme(ModeDark)
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 40)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: got %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestGlamourStyle(t *testing.T) {
	theme := NewTheme(ModeLight)
	got := theme.GlamourStyle()
	if got != "light" && got != "notty" {
		t.Errorf("GlamourStyle() = %q", got)
	}
}

func TestStatusHelpersCarryIndicators(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"success", RenderSuccess("saved"), StatusIndicators.Success},
		{"error", RenderError("failed"), StatusIndicators.Error},
		{"warning", RenderWarning("careful"), StatusIndicators.Warning},
		{"info", RenderInfo("note"), StatusIndicators.Info},
		{"status ok", RenderStatus(true, "x"), StatusIndicators.Success},
		{"status err", RenderStatus(false, "x"), StatusIndicators.Error},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.got, tt.want) {
			t.Errorf("%s: %q missing %q", tt.name, tt.got, tt.want)
		}
	}
}
