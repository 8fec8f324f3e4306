// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversations held by the backend",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List session ids the backend remembers",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := a.client.ListSessions(cmd.Context())
			if asJSON {
				return outputJSON(a.out, "session list", func() (any, error) {
					return nonNil(ids), err
				})
			}
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(a.out, "No active sessions.")
				return nil
			}
			for _, id := range ids {
				marker := "  "
				if id == a.cfg.Chat.SessionID {
					marker = SuccessStyle.Render("* ")
				}
				fmt.Fprintln(a.out, marker+id)
			}
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear [ID]",
		Short: "Make the backend forget a conversation",
		Long: `Make the backend forget a conversation. Without an ID the configured
session (--session or chat.session_id) is cleared. Uploaded documents are
not affected.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.cfg.Chat.SessionID
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return &UsageError{Err: errors.New("no session given: pass an ID or --session")}
			}
			err := a.client.ClearSession(cmd.Context(), id)
			if asJSON {
				return outputJSON(a.out, "session clear", func() (any, error) {
					return map[string]string{"cleared": id}, err
				})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("✓ ")+"Cleared session "+id)
			return nil
		},
	}

	cmd.AddCommand(list, clear)
	return cmd
}
