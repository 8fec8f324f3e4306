// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/upload"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ModeDark)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func TestRenderMessage_RoleLabels(t *testing.T) {
	theme := testTheme()
	opts := TranscriptOptions{Width: 80}

	tests := []struct {
		msg   model.Message
		label string
	}{
		{model.NewUserMessage("How often to change spark plugs?"), "You"},
		{model.NewAssistantMessage("Every 30,000 miles.", nil), "AutoQuery"},
		{model.NewErrorMessage("LLM timeout"), "Error"},
	}
	for _, tt := range tests {
		out := RenderMessage(theme, tt.msg, opts)
		if !strings.Contains(out, tt.label) {
			t.Errorf("%s message missing label %q:\n%s", tt.msg.Role, tt.label, out)
		}
		if !strings.Contains(out, tt.msg.Content) {
			t.Errorf("%s message missing content:\n%s", tt.msg.Role, out)
		}
	}
}

func TestRenderMessage_SystemHasNoLabel(t *testing.T) {
	out := RenderMessage(testTheme(), model.NewSystemMessage("Uploaded manual.pdf"), TranscriptOptions{Width: 80})
	if !strings.Contains(out, "Uploaded manual.pdf") {
		t.Errorf("system line missing text: %q", out)
	}
	if strings.Contains(out, "System") {
		t.Errorf("system line should not carry a label: %q", out)
	}
}

func TestRenderMessage_Sources(t *testing.T) {
	msg := model.NewAssistantMessage("Use 5W-30.", []string{"owner_manual.pdf", "quick_guide.pdf"})
	out := RenderMessage(testTheme(), msg, TranscriptOptions{Width: 100})
	if !strings.Contains(out, "Sources: owner_manual.pdf, quick_guide.pdf") {
		t.Errorf("missing sources line:\n%s", out)
	}
}

func TestRenderMessage_Timestamps(t *testing.T) {
	msg := model.NewUserMessage("hi")
	msg.Timestamp = time.Date(2025, 3, 1, 14, 5, 0, 0, time.Local)

	with := RenderMessage(testTheme(), msg, TranscriptOptions{Width: 80, ShowTimestamps: true})
	if !strings.Contains(with, "14:05") {
		t.Errorf("timestamp missing:\n%s", with)
	}
	without := RenderMessage(testTheme(), msg, TranscriptOptions{Width: 80})
	if strings.Contains(without, "14:05") {
		t.Errorf("timestamp should be hidden:\n%s", without)
	}
}

func TestRenderMessage_StreamingCursor(t *testing.T) {
	msg := model.NewStreamingMessage().WithChunk("Check the")
	out := RenderMessage(testTheme(), msg, TranscriptOptions{Width: 80, Markdown: NewMarkdown("notty")})
	if !strings.Contains(out, "Check the"+streamCursor) {
		t.Errorf("streaming message should end in a cursor:\n%s", out)
	}
}

func TestRenderMessage_FitsWidth(t *testing.T) {
	long := strings.Repeat("torque ", 60)
	for _, msg := range []model.Message{
		model.NewUserMessage(long),
		model.NewAssistantMessage(long, nil),
		model.NewErrorMessage(long),
	} {
		out := RenderMessage(testTheme(), msg, TranscriptOptions{Width: 60})
		if w := lipgloss.Width(out); w > 60 {
			t.Errorf("%s message is %d columns wide, want <= 60", msg.Role, w)
		}
	}
}

func TestRenderTranscript_Order(t *testing.T) {
	var msgs model.Transcript
	msgs = msgs.Append(
		model.NewUserMessage("first question"),
		model.NewAssistantMessage("first answer", nil),
		model.NewUserMessage("second question"),
	)
	out := RenderTranscript(testTheme(), msgs, TranscriptOptions{Width: 80})

	a := strings.Index(out, "first question")
	b := strings.Index(out, "first answer")
	c := strings.Index(out, "second question")
	if a < 0 || b < 0 || c < 0 || !(a < b && b < c) {
		t.Errorf("messages out of order: %d %d %d", a, b, c)
	}
	if RenderTranscript(testTheme(), nil, TranscriptOptions{}) != "" {
		t.Error("empty transcript should render nothing")
	}
}

func TestSourcesLine(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		width   int
		want    string
	}{
		{"none", nil, 80, ""},
		{"fits", []string{"a.pdf", "b.pdf"}, 80, "Sources: a.pdf, b.pdf"},
		{"unbounded", []string{"a.pdf", "b.pdf"}, 0, "Sources: a.pdf, b.pdf"},
		{"overflow", []string{"aaaa.pdf", "bbbb.pdf", "cccc.pdf"}, 20, "Sources: aaaa.pdf, +2 more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SourcesLine(tt.sources, tt.width); got != tt.want {
				t.Errorf("SourcesLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownRender(t *testing.T) {
	md := NewMarkdown("notty")
	out := md.Render("**Torque**: 145 ft-lb", 60)
	if !strings.Contains(out, "Torque") || !strings.Contains(out, "145 ft-lb") {
		t.Errorf("markdown lost content: %q", out)
	}
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("markdown output should be trimmed: %q", out)
	}

	var nilMD *Markdown
	if got := nilMD.Render("plain", 40); got != "plain" {
		t.Errorf("nil renderer should pass content through, got %q", got)
	}
}

// =============================================================================
// WELCOME
// =============================================================================

func TestWelcome_Cycle(t *testing.T) {
	w := NewWelcome()
	if _, ok := w.Prompt(); ok {
		t.Fatal("nothing should be highlighted initially")
	}

	w = w.Next()
	if p, _ := w.Prompt(); p != "How often to change spark plugs?" {
		t.Errorf("first prompt = %q", p)
	}
	w = w.Next().Next().Next()
	if p, _ := w.Prompt(); p != ExamplePrompts[0] {
		t.Errorf("Next should wrap, got %q", p)
	}
	w = w.Prev()
	if p, _ := w.Prompt(); p != "Fuse box diagram location" {
		t.Errorf("Prev should wrap, got %q", p)
	}
}

func TestWelcome_View(t *testing.T) {
	w := NewWelcome().Next()
	out := w.View(testTheme(), 100)
	for _, want := range append([]string{"1.", "2.", "3.", "> "}, ExamplePrompts...) {
		if !strings.Contains(out, want) {
			t.Errorf("welcome view missing %q", want)
		}
	}
}

// =============================================================================
// TYPING INDICATOR
// =============================================================================

func TestTypingIndicator(t *testing.T) {
	theme := testTheme()
	ti := NewTypingIndicator()
	if ti.View(theme) != "" {
		t.Error("stopped indicator should render nothing")
	}
	if cmd := ti.Start(""); cmd == nil {
		t.Error("Start should return the first tick")
	}
	if cmd := ti.Start(""); cmd != nil {
		t.Error("Start while active should not start a second tick loop")
	}
	if !strings.Contains(ti.View(theme), "AutoQuery is typing") {
		t.Errorf("indicator label missing: %q", ti.View(theme))
	}
	ti.Stop()
	if ti.Active() || ti.View(theme) != "" {
		t.Error("Stop should hide the indicator")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{12 * time.Second, "12s"},
		{65 * time.Second, "1m05s"},
		{10 * time.Minute, "10m00s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.d); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// =============================================================================
// PANELS AND STATUS BAR
// =============================================================================

func TestRenderUploadPanel_States(t *testing.T) {
	theme := testTheme()
	p := upload.DefaultPolicy()
	f := upload.File{Name: "owner_manual.pdf", Size: 2_100_000}

	tests := []struct {
		name string
		v    UploadView
		want string
	}{
		{"idle", UploadView{State: upload.Idle, Policy: p}, "up to 10 MB"},
		{"hover", UploadView{State: upload.Idle, Hovering: true, Policy: p}, "Press enter to attach"},
		{"selected", UploadView{State: upload.FileSelected, File: f, Policy: p}, "2.1 MB"},
		{"uploading", UploadView{State: upload.Uploading, File: f, Policy: p}, "Uploading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := RenderUploadPanel(theme, tt.v, 30); !strings.Contains(out, tt.want) {
				t.Errorf("panel missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRenderDocuments(t *testing.T) {
	theme := testTheme()
	if out := RenderDocuments(theme, nil, true, 30); !strings.Contains(out, "No documents uploaded yet") {
		t.Errorf("empty list:\n%s", out)
	}

	docs := []api.DocumentInfo{
		{ID: "d1", Filename: "owner_manual.pdf", SizeBytes: 2_100_000, Pages: 412},
		{ID: "d2", Filename: "warranty.docx"},
	}
	out := RenderDocuments(theme, docs, false, 40)
	for _, want := range []string{"Documents (2)", "off", "owner_manual.pdf", "2.1 MB", "412 pages", "warranty.docx"} {
		if !strings.Contains(out, want) {
			t.Errorf("document list missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatusBar(t *testing.T) {
	theme := testTheme()
	info := StatusInfo{SessionID: "0123456789abcdef", Documents: 3, UseDocuments: true, Busy: "asking"}

	out := RenderStatusBar(theme, info, DefaultShortcuts, 120)
	for _, want := range []string{"session 01234567", "3 docs", "asking", "enter"} {
		if !strings.Contains(out, want) {
			t.Errorf("status bar missing %q: %q", want, out)
		}
	}
	if w := lipgloss.Width(out); w > 120 {
		t.Errorf("status bar is %d wide, want <= 120", w)
	}

	narrow := RenderStatusBar(theme, info, DefaultShortcuts, 40)
	if strings.Contains(narrow, "ctrl+c") {
		t.Errorf("narrow bar should drop trailing hints: %q", narrow)
	}
}
