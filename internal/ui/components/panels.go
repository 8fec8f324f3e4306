// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/upload"
	"github.com/jeranaias/driveq/internal/util"
)

// =============================================================================
// UPLOAD DROP ZONE
// =============================================================================

// UploadView is what the drop zone needs to know about the widget.
type UploadView struct {
	State    upload.State
	File     upload.File
	Hovering bool
	Policy   upload.Policy
}

// RenderUploadPanel draws the drop zone for the widget's current state.
// width is the panel's outer width.
func RenderUploadPanel(theme *styles.Theme, v UploadView, width int) string {
	inner := max(width-4, 10)
	var lines []string

	switch {
	case v.State == upload.Uploading:
		lines = []string{
			theme.UploadStatus.Render("Uploading"),
			util.MiddleTruncate(v.File.Name, inner),
		}
	case v.State == upload.FileSelected:
		meta := model.FormatSize(v.File.Size)
		lines = []string{
			theme.DocName.Render(util.MiddleTruncate(v.File.Name, inner)),
			theme.DocMeta.Render(meta),
			theme.ShortcutKey.Render("ctrl+u") + theme.ShortcutDesc.Render(" upload  ") +
				theme.ShortcutKey.Render("esc") + theme.ShortcutDesc.Render(" clear"),
		}
	case v.Hovering:
		lines = []string{theme.UploadStatus.Render("Press enter to attach")}
	default:
		lines = []string{
			"Drop a manual here",
			theme.Hint.Render("or /upload <path>"),
			theme.DocMeta.Render(acceptLine(v.Policy)),
		}
	}

	style := theme.Panel
	if v.Hovering || v.State == upload.FileSelected {
		style = theme.PanelActive
	}
	title := theme.PanelTitle.Render("Upload")
	return style.Width(max(width-2, 1)).Render(title + "\n" + strings.Join(lines, "\n"))
}

func acceptLine(p upload.Policy) string {
	if p.MaxBytes <= 0 {
		return ""
	}
	const mib = 1024 * 1024
	return fmt.Sprintf("PDF or Word, up to %d MB", p.MaxBytes/mib)
}

// =============================================================================
// DOCUMENT LIST
// =============================================================================

// RenderDocuments draws the backend's document list. useDocs shows whether
// answers are drawn from it.
func RenderDocuments(theme *styles.Theme, docs []api.DocumentInfo, useDocs bool, width int) string {
	inner := max(width-4, 10)

	var b strings.Builder
	title := fmt.Sprintf("Documents (%d)", len(docs))
	b.WriteString(theme.PanelTitle.Render(title))
	if !useDocs {
		b.WriteString(" " + theme.StatusOff.Render("off"))
	}
	b.WriteString("\n")

	if len(docs) == 0 {
		b.WriteString(theme.Hint.Render("No documents uploaded yet"))
	}
	for i, d := range docs {
		b.WriteString(theme.DocName.Render(util.MiddleTruncate(d.Filename, inner)))
		if meta := docMeta(d); meta != "" {
			b.WriteString("\n  " + theme.DocMeta.Render(util.TruncateWidth(meta, inner-2)))
		}
		if i < len(docs)-1 {
			b.WriteString("\n")
		}
	}
	return theme.Panel.Width(max(width-2, 1)).Render(b.String())
}

func docMeta(d api.DocumentInfo) string {
	var parts []string
	if s := model.FormatSize(d.SizeBytes); s != "" {
		parts = append(parts, s)
	}
	if d.Pages > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", d.Pages))
	}
	if !d.UploadedAt.IsZero() {
		doc := model.UploadedDocument{UploadedAt: d.UploadedAt}
		parts = append(parts, doc.Age())
	}
	if d.Status != "" && d.Status != "ready" && d.Status != "processed" {
		parts = append(parts, d.Status)
	}
	return strings.Join(parts, " · ")
}
