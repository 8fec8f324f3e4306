// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/upload"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// StateChangedMsg signals that the store has a new snapshot.
type StateChangedMsg struct{}

// ChatDoneMsg reports the end of a send or stream.
type ChatDoneMsg struct {
	Err error
}

// UploadDoneMsg reports the end of an upload.
type UploadDoneMsg struct {
	Result upload.Result
}

// DocumentsDoneMsg reports a document list refresh or delete.
type DocumentsDoneMsg struct {
	Err error
}

// SearchDoneMsg carries /search results.
type SearchDoneMsg struct {
	Query   string
	Results []api.SearchResult
	Err     error
}

// StatsDoneMsg carries /stats results.
type StatsDoneMsg struct {
	Stats *api.Stats
	Err   error
}

// ResetDoneMsg reports the end of /reset.
type ResetDoneMsg struct {
	Err error
}

// SavedMsg reports a history save.
type SavedMsg struct {
	ID   string
	Auto bool
	Err  error
}

// ExportedMsg reports an export.
type ExportedMsg struct {
	Path string
	Err  error
}

// statusExpiredMsg clears the transient status text it was scheduled for.
type statusExpiredMsg struct {
	seq int
}
