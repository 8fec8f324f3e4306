// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript and the
// documents a user has uploaded.
//
// # Key Types
//
//   - Message: one transcript entry with role, content, optional sources and timestamp
//   - Transcript: the append-only, chronologically ordered message sequence
//   - UploadedDocument: the client's record of a file the backend accepted
//   - Role: user, assistant, system or error
//
// Messages are values. Operations that change a message (a streamed chunk,
// finalization, failure) return a new Message instead of mutating shared
// state, so snapshots handed to renderers never change underneath them.
//
// # Usage
//
//	t := model.Transcript{}
//	t = t.Append(model.NewUserMessage("How often to change spark plugs?"))
//	t = t.Append(model.NewAssistantMessage("Every 30,000 miles.", []string{"owner_manual.pdf"}))
//	fmt.Println(t.Last().SourcesLine()) // Sources: owner_manual.pdf
package model
