// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the driveq command tree.
//
// Running driveq with no command opens the full-screen chat. The other
// commands cover the same ground without a TUI, so they can be scripted:
//
//   - ask: one question, answer on stdout
//   - chat: line-mode REPL with history
//   - upload, docs: manage the backend's documents
//   - session: list or clear backend conversations
//   - watch: upload manuals as they land in a folder
//   - history: saved conversations and the local upload ledger
//   - config, doctor, version: housekeeping
//
// Most commands accept --json and print a JSONResponse envelope. Exit codes
// follow the error kind: 2 for validation and usage, 3 for network, 4 for
// server errors and 1 for anything else.
package cli
