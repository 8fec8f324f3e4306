// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var recursive, initial bool
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Upload manuals as they appear in a folder",
		Long: `Watch a folder and upload every PDF or Word file written into it.

Files are uploaded once their size stops changing. Contents uploaded before,
from any folder or command, are skipped. Press Ctrl+C to stop.`,
		Example: `  driveq watch ~/Manuals
  driveq watch --initial --recursive ~/Manuals`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return &UsageError{Err: errors.New("no folder given: pass DIR or set watch.dir")}
			}

			ledger, err := a.openHistory()
			if err != nil {
				a.log.Warn("upload ledger unavailable, duplicates will be re-sent", "error", err)
				ledger = nil
			} else {
				defer ledger.Close()
			}

			cfg := watch.Config{
				Dir:              dir,
				Debounce:         time.Duration(a.cfg.Watch.DebounceMS) * time.Millisecond,
				UploadsPerMinute: a.cfg.Watch.UploadsPerMinute,
				Policy:           a.policy(),
				Recursive:        recursive,
				Initial:          initial,
			}
			// A nil *storage.Store must not become a non-nil Ledger.
			var w *watch.Watcher
			if ledger != nil {
				w, err = watch.New(cfg, a.client, ledger)
			} else {
				w, err = watch.New(cfg, a.client, nil)
			}
			if err != nil {
				return &UsageError{Err: err}
			}
			w.WithLogger(a.log)
			w.OnEvent(func(ev watch.Event) {
				fmt.Fprintln(a.out, ev.String())
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := w.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, MutedStyle.Render("Watching "+w.Dir()+" (Ctrl+C to stop)"))

			<-ctx.Done()
			return w.Close()
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "also watch subfolders")
	cmd.Flags().BoolVar(&initial, "initial", false, "upload files already in the folder")
	return cmd
}
