// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the UI, CLI and storage code.
//
// # Key Functions
//
// Text:
//   - TruncateWidth: cut to a terminal column budget with "..."
//   - MiddleTruncate: keep both ends of a filename
//   - JoinFit: join labels until a width budget runs out
//
// Files:
//   - AtomicWriteFile: crash-safe write with fsync and rename
//
// # Usage
//
//	line := util.JoinFit(msg.Sources, ", ", width-10)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
