// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components renders the pieces of the driveq TUI: the transcript,
// the empty-state onboarding, the typing indicator, the upload drop zone,
// the document list and the status bar.
//
// Everything here is a pure function of its inputs. The chat package owns
// the state and decides what to draw; components only decide how.
package components
