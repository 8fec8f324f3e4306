// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to Markdown or JSON files.
//
// # Key Types
//
//   - Exporter: renders a conversation into one format
//   - Options: output directory and what metadata to include
//
// # Usage
//
// Export the live transcript:
//
//	conv := export.FromTranscript(state.SessionID, state.Messages)
//	exp, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exp, nil)
//
// Export to a specific file:
//
//	err := export.WriteFile(conv, exp, "oil-change.md")
package export
