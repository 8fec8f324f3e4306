// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the driveq terminal UI: a Bubble Tea model over a
session.Shell.

# State flow

The shell owns all session state in its Store. The model subscribes to the
store and redraws from snapshots; it never mutates session state itself.
Every workflow (send, upload, delete, reset) runs in a tea.Cmd goroutine
that calls the shell and reports back with a *DoneMsg.

Store updates arrive far faster than a terminal can usefully redraw while an
answer streams in, so they pass through a StreamingBuffer that caps redraws
at 30 frames per second.

# Input

  - Enter sends the draft. Alt+Enter and Ctrl+J insert a newline; terminals
    do not report Shift+Enter to Bubble Tea.
  - Tab and Shift+Tab pick an example prompt on the empty transcript.
  - A pasted path to an existing file is attached instead of sent.
  - Lines starting with / are commands; see /help.

# Files

  - model.go: Model, Options, Init and layout
  - update.go: message and key handling
  - commands.go: slash commands and the tea.Cmds that run workflows
  - view.go: rendering
  - keys.go: key bindings
  - streaming.go: StreamingBuffer
  - cancel.go: cancellation of in-flight requests
*/
package chat
