// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/ui/chat"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat (the default)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

// runTUI runs the Bubble Tea chat until the user quits.
func (a *app) runTUI(ctx context.Context) error {
	if !a.interactive() {
		return &UsageError{Err: errors.New("the chat needs a terminal; use 'driveq ask' or 'driveq chat' with piped input")}
	}

	shell := a.newShell(a.sessionID())

	opts := chat.Options{
		Theme:          a.theme(),
		AutoSave:       a.cfg.Chat.AutoSave,
		ShowTimestamps: a.cfg.UI.ShowTimestamps,
		Markdown:       a.cfg.UI.Markdown,
		ExportDir:      a.cfg.Storage.ExportDir,
		BackendURL:     a.cfg.API.BaseURL,
		Logger:         a.log,
	}
	if hist, err := a.openHistory(); err != nil {
		a.log.Warn("history unavailable, /save disabled", "error", err)
	} else {
		defer hist.Close()
		opts.History = hist
		shell.OnUpload(ledgerRecorder(hist, storage.SourceTUI, a.log))
	}

	m := chat.New(shell, opts)
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	a.log.Info("tui started", "backend", a.cfg.API.BaseURL, "session", shell.Store().Snapshot().SessionID)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
