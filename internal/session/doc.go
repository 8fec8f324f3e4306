// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the state of one running chat client and the
// workflows that change it.
//
// # Key Types
//
//   - State: transcript, document list, in-flight flags, inline notice
//   - Action: the only way State changes, applied by the pure Reduce
//   - Store: mutex-guarded State with subscriber notification
//   - Shell: send, stream, upload, clear and document workflows
//   - Activity: idle/dirty tracking that drives transcript autosave
//
// # Usage
//
//	store := session.NewStore(session.NewState(""))
//	shell := session.NewShell(client, store, upload.NewWidget(upload.DefaultPolicy()))
//	if err := shell.Send(ctx, "How often to change spark plugs?"); err != nil {
//	    // ValidationError or ErrBusy; the transcript already shows failures
//	}
//
// Every transcript change goes through Reduce, so a caller holding a
// Snapshot never observes a half-applied workflow.
package session
