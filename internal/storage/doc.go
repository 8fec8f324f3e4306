// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps local history in a SQLite database.
//
// Two things live there: saved chat transcripts, and a ledger of every
// file uploaded from this machine keyed by content hash so the folder
// watcher never uploads the same manual twice.
//
// # Key Types
//
//   - Store: the database handle
//   - Conversation / ConversationMeta: a saved transcript and its list entry
//   - UploadRecord: one ledger row
//
// # Usage
//
//	store, err := storage.Open(cfg.DBPath())
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	id, err := store.SaveConversation(ctx, &storage.Conversation{
//	    SessionID: state.SessionID,
//	    Messages:  state.Messages,
//	})
//
// # Storage Location
//
// ~/.driveq/history.db unless storage.db_path says otherwise.
package storage
