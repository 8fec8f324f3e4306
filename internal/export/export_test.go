// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/storage"
)

func sampleConversation() *storage.Conversation {
	var msgs model.Transcript
	msgs = msgs.Append(
		model.NewUserMessage("Torque spec for front axle nut"),
		model.NewAssistantMessage("**181 lbf·ft**, then stake the nut.", []string{"civic_manual.pdf p.18-12", "tsb_17-032.pdf"}),
		model.NewErrorMessage("LLM timeout"),
	)
	return &storage.Conversation{
		ID:        "conv_1",
		Title:     "Torque spec for front axle nut",
		SessionID: "sess-42",
		CreatedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Messages:  msgs,
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		ext     string
		wantErr bool
	}{
		{"md", ".md", false},
		{"Markdown", ".md", false},
		{".json", ".json", false},
		{"html", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		exp, err := ForFormat(tt.format, nil)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ForFormat(%q) expected error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ForFormat(%q) error = %v", tt.format, err)
		}
		if exp.FileExtension() != tt.ext {
			t.Errorf("ForFormat(%q).FileExtension() = %s, want %s", tt.format, exp.FileExtension(), tt.ext)
		}
	}
}

func TestFormatForPath(t *testing.T) {
	if FormatForPath("out.JSON") != "json" {
		t.Error("expected json")
	}
	if FormatForPath("out.md") != "md" || FormatForPath("out") != "md" {
		t.Error("expected md default")
	}
}

func TestMarkdownExport_Content(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	md := string(out)

	for _, want := range []string{
		"---\ntitle: Torque spec for front axle nut\n",
		"session: sess-42\n",
		"generator: driveq\n",
		"# Torque spec for front axle nut\n",
		"- **Questions**: 1\n",
		"### You <sub>",
		"### AutoQuery <sub>",
		"**181 lbf·ft**, then stake the nut.",
		"*Sources: civic_manual.pdf p.18-12, tsb_17-032.pdf*",
		"### Error",
		"> LLM timeout",
		"*Exported from driveq on ",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownExport_NoTimestamps(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{IncludeMetadata: false}).Export(sampleConversation())
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)
	if strings.Contains(md, "<sub>") {
		t.Error("timestamps should be omitted")
	}
	if strings.HasPrefix(md, "---") || strings.Contains(md, "Exported from") {
		t.Error("metadata should be omitted")
	}
}

func TestMarkdownExport_EscapesTitle(t *testing.T) {
	conv := sampleConversation()
	conv.Title = "Fuse #12: [A/C]\ncompressor"
	out, err := NewMarkdownExporter(nil).Export(conv)
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)
	if !strings.Contains(md, `title: "Fuse #12: [A/C]\ncompressor"`) {
		t.Errorf("frontmatter title not quoted:\n%s", md)
	}
	if !strings.Contains(md, `# Fuse \#12: \[A/C\]`) {
		t.Errorf("heading not escaped:\n%s", md)
	}
}

func TestExport_Empty(t *testing.T) {
	conv := &storage.Conversation{Title: "x"}
	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		if _, err := exp.Export(conv); !errors.Is(err, ErrEmpty) {
			t.Errorf("%T error = %v, want ErrEmpty", exp, err)
		}
		if _, err := exp.Export(nil); err == nil {
			t.Errorf("%T accepted nil conversation", exp)
		}
	}
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc struct {
		Title     string `json:"title"`
		SessionID string `json:"session_id"`
		Messages  []struct {
			Role      string    `json:"role"`
			Author    string    `json:"author"`
			Content   string    `json:"content"`
			Sources   []string  `json:"sources"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc.Title != "Torque spec for front axle nut" || doc.SessionID != "sess-42" {
		t.Errorf("header = %+v", doc)
	}
	if len(doc.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(doc.Messages))
	}
	if doc.Messages[1].Author != "AutoQuery" || len(doc.Messages[1].Sources) != 2 {
		t.Errorf("assistant message = %+v", doc.Messages[1])
	}
	if doc.Messages[2].Role != "error" || doc.Messages[2].Content != "LLM timeout" {
		t.Errorf("error message = %+v", doc.Messages[2])
	}
	if doc.Messages[0].Timestamp.IsZero() {
		t.Error("timestamp missing")
	}
}

func TestFromTranscript_SkipsStreaming(t *testing.T) {
	var msgs model.Transcript
	msgs = msgs.Append(
		model.NewUserMessage("Fuse box diagram location"),
		model.NewStreamingMessage().WithChunk("Under the"),
	)
	conv := FromTranscript("sess-9", msgs)
	if len(conv.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(conv.Messages))
	}
	if conv.Title != "Fuse box diagram location" || conv.SessionID != "sess-9" {
		t.Errorf("conv = %+v", conv)
	}
	if !conv.CreatedAt.Equal(msgs[0].Timestamp) {
		t.Errorf("CreatedAt = %v, want first message time", conv.CreatedAt)
	}
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := ExportToFile(sampleConversation(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path = %s, want under %s", path, dir)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "driveq_Torque_spec_for_front_axle_nut_") || !strings.HasSuffix(base, ".md") {
		t.Errorf("file name = %s", base)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Torque spec") {
		t.Error("file content missing title")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "chat.json")
	if err := WriteFile(sampleConversation(), NewJSONExporter(nil), path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("written file is not valid JSON")
	}

	err = WriteFile(&storage.Conversation{}, NewJSONExporter(nil), filepath.Join(t.TempDir(), "x.json"))
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Oil change", "Oil_change"},
		{"A/C: not cold?", "A-C-_not_cold-"},
		{"", "chat"},
		{"   ", "chat"},
		{strings.Repeat("a", 60), strings.Repeat("a", 37)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
