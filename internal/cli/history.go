// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/export"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/util"
)

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse saved conversations and past uploads",
		Long: `Browse conversations saved with /save or autosave.

A conversation is named by its number in 'history list' (1 is the most
recent), its id, or a unique id prefix.`,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	var limit int
	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			var metas []storage.ConversationMeta
			if query != "" {
				metas, err = hist.SearchConversations(cmd.Context(), query)
			} else {
				metas, err = hist.ListConversations(cmd.Context(), limit)
			}
			if asJSON {
				return outputJSON(a.out, "history list", func() (any, error) {
					if metas == nil {
						metas = []storage.ConversationMeta{}
					}
					return metas, err
				})
			}
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, storage.FormatConversationList(metas))
			if len(metas) == 0 {
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum conversations to list")
	list.Flags().StringVarP(&query, "search", "s", "", "only conversations whose title or text matches")

	show := &cobra.Command{
		Use:   "show REF",
		Short: "Print a saved conversation",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			conv, err := hist.Resolve(cmd.Context(), args[0])
			if asJSON {
				return outputJSON(a.out, "history show", func() (any, error) {
					return conv, err
				})
			}
			if err != nil {
				return err
			}
			writeConversation(a.out, conv)
			return nil
		},
	}

	var format string
	exp := &cobra.Command{
		Use:   "export REF [FILE]",
		Short: "Export a saved conversation to Markdown or JSON",
		Long: `Export a saved conversation. The format follows FILE's extension
unless --format is given. Without FILE a name is generated in
storage.export_dir, or the current directory.`,
		Example: `  driveq history export 1
  driveq history export 1 tires.json`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			conv, err := hist.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			f := format
			if f == "" && len(args) == 2 {
				f = export.FormatForPath(args[1])
			}
			if f == "" {
				f = "md"
			}
			opts := export.DefaultOptions()
			if a.cfg.Storage.ExportDir != "" {
				opts.OutputDir = a.cfg.Storage.ExportDir
			}
			exporter, err := export.ForFormat(f, opts)
			if err != nil {
				return &UsageError{Err: err}
			}

			var path string
			if len(args) == 2 {
				path = args[1]
				err = export.WriteFile(conv, exporter, path)
			} else {
				path, err = export.ExportToFile(conv, exporter, opts)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("✓ ")+"Exported to "+path)
			return nil
		},
	}
	exp.Flags().StringVarP(&format, "format", "f", "", "md or json")

	del := &cobra.Command{
		Use:     "delete REF",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			conv, err := hist.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := hist.DeleteConversation(cmd.Context(), conv.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("✓ ")+"Deleted "+conv.ID)
			return nil
		},
	}

	uploads := &cobra.Command{
		Use:   "uploads",
		Short: "List files uploaded from this machine",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			recs, err := hist.ListUploads(cmd.Context(), limit)
			if asJSON {
				return outputJSON(a.out, "history uploads", func() (any, error) {
					if recs == nil {
						recs = []storage.UploadRecord{}
					}
					return recs, err
				})
			}
			if err != nil {
				return err
			}
			writeUploadTable(a.out, recs)
			return nil
		},
	}
	uploads.Flags().IntVarP(&limit, "limit", "n", 20, "maximum uploads to list")

	cmd.AddCommand(list, show, exp, del, uploads)
	return cmd
}

// writeConversation prints a transcript as plain labeled text.
func writeConversation(w io.Writer, conv *storage.Conversation) {
	title := conv.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintln(w, TitleStyle.Render(title))
	fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("%s  saved %s  %d messages",
		conv.ID, humanize.Time(conv.UpdatedAt), len(conv.Messages))))
	fmt.Fprintln(w, RenderSeparator())

	for _, m := range conv.Messages {
		label := m.Role.DisplayName() + ":"
		switch m.Role {
		case model.RoleUser:
			label = PromptStyle.Render(label)
		case model.RoleAssistant:
			label = AnswerLabelStyle.Render(label)
		case model.RoleError:
			label = ErrorStyle.Render(label)
		default:
			label = MutedStyle.Render(label)
		}
		fmt.Fprintln(w, label)
		fmt.Fprintln(w, strings.TrimRight(m.Content, "\n"))
		if len(m.Sources) > 0 {
			fmt.Fprintln(w, MutedStyle.Render("Sources: "+strings.Join(m.Sources, ", ")))
		}
		fmt.Fprintln(w)
	}
}

func writeUploadTable(w io.Writer, recs []storage.UploadRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No uploads recorded.")
		return
	}
	fmt.Fprintf(w, "%-32s %-10s %-8s %-16s %s\n", "NAME", "SIZE", "FROM", "UPLOADED", "DOCUMENT")
	for _, r := range recs {
		fmt.Fprintf(w, "%-32s %-10s %-8s %-16s %s\n",
			util.MiddleTruncate(r.Filename, 32),
			humanize.IBytes(uint64(max(r.SizeBytes, 0))),
			r.Source,
			humanize.Time(r.UploadedAt),
			r.DocumentID)
	}
}
