// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/util"
)

// documentJSON is one document in docs list --json.
type documentJSON struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	Pages      int    `json:"pages,omitempty"`
	Status     string `json:"status,omitempty"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

type searchJSON struct {
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

type statsJSON struct {
	TotalDocuments int            `json:"total_documents"`
	TotalChunks    int            `json:"total_chunks"`
	TotalChars     int            `json:"total_chars"`
	Extra          map[string]any `json:"extra,omitempty"`
}

func newDocsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "List, search and delete uploaded documents",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := a.client.ListDocuments(cmd.Context())
			if asJSON {
				return outputJSON(a.out, "docs list", func() (any, error) {
					return documentsJSON(docs), err
				})
			}
			if err != nil {
				return err
			}
			writeDocumentTable(a.out, docs)
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete ID|FILENAME...",
		Aliases: []string{"rm"},
		Short:   "Delete documents by id or filename",
		Args:    usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.deleteDocuments(cmd.Context(), args)
			if asJSON {
				return outputJSON(a.out, "docs delete", func() (any, error) {
					return map[string]any{"deleted": deleted}, err
				})
			}
			for _, id := range deleted {
				fmt.Fprintln(a.out, SuccessStyle.Render("✓ ")+"Deleted "+id)
			}
			return err
		},
	}

	var topK int
	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the uploaded documents",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			results, err := a.client.SearchDocuments(cmd.Context(), query, topK)
			if asJSON {
				return outputJSON(a.out, "docs search", func() (any, error) {
					out := make([]searchJSON, 0, len(results))
					for _, r := range results {
						out = append(out, searchJSON{Source: r.Source, Score: r.Score, Content: r.Content})
					}
					return out, err
				})
			}
			if err != nil {
				return err
			}
			writeSearchResults(a.out, results)
			return nil
		},
	}
	search.Flags().IntVarP(&topK, "top-k", "k", api.DefaultTopK, "number of results")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show document index statistics",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.client.DocumentStats(cmd.Context())
			if asJSON {
				return outputJSON(a.out, "docs stats", func() (any, error) {
					if err != nil {
						return nil, err
					}
					return statsJSON{st.TotalDocuments, st.TotalChunks, st.TotalChars, st.Extra}, nil
				})
			}
			if err != nil {
				return err
			}
			writeStats(a.out, st)
			return nil
		},
	}

	cmd.AddCommand(list, del, search, stats)
	return cmd
}

// deleteDocuments resolves each reference against the backend's list and
// deletes it, forgetting it in the upload ledger too. It stops at the first
// failure.
func (a *app) deleteDocuments(ctx context.Context, refs []string) ([]string, error) {
	docs, err := a.client.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	ledger, err := a.openHistory()
	if err != nil {
		a.log.Warn("upload ledger unavailable", "error", err)
		ledger = nil
	} else {
		defer ledger.Close()
	}

	var deleted []string
	for _, ref := range refs {
		id, ok := resolveDocumentID(docs, ref)
		if !ok {
			return deleted, &NotFoundError{Resource: "document", ID: ref}
		}
		if err := a.client.DeleteDocument(ctx, id); err != nil {
			return deleted, err
		}
		if ledger != nil {
			if _, err := ledger.ForgetDocument(ctx, id); err != nil {
				a.log.Warn("ledger forget failed", "document", id, "error", err)
			}
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

// resolveDocumentID matches ref against ids first, then filenames.
func resolveDocumentID(docs []api.DocumentInfo, ref string) (string, bool) {
	for _, d := range docs {
		if d.ID == ref {
			return d.ID, true
		}
	}
	for _, d := range docs {
		if strings.EqualFold(d.Filename, ref) {
			return d.ID, true
		}
	}
	return "", false
}

func documentsJSON(docs []api.DocumentInfo) []documentJSON {
	out := make([]documentJSON, 0, len(docs))
	for _, d := range docs {
		j := documentJSON{ID: d.ID, Filename: d.Filename, SizeBytes: d.SizeBytes, Pages: d.Pages, Status: d.Status}
		if !d.UploadedAt.IsZero() {
			j.UploadedAt = d.UploadedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, j)
	}
	return out
}

// =============================================================================
// TEXT OUTPUT
// =============================================================================

func writeDocumentTable(w io.Writer, docs []api.DocumentInfo) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents uploaded yet.")
		fmt.Fprintln(w, MutedStyle.Render("Upload one with: driveq upload <file>"))
		return
	}

	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Documents (%d)", len(docs))))
	fmt.Fprintf(w, "%-32s %-10s %-6s %-16s %s\n", "NAME", "SIZE", "PAGES", "UPLOADED", "ID")
	for _, d := range docs {
		size, pages, uploaded := "-", "-", "-"
		if d.SizeBytes > 0 {
			size = model.FormatSize(d.SizeBytes)
		}
		if d.Pages > 0 {
			pages = fmt.Sprint(d.Pages)
		}
		if !d.UploadedAt.IsZero() {
			uploaded = humanize.Time(d.UploadedAt)
		}
		fmt.Fprintf(w, "%-32s %-10s %-6s %-16s %s\n",
			util.MiddleTruncate(d.Filename, 32), size, pages, uploaded, d.ID)
	}
}

func writeSearchResults(w io.Writer, results []api.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s %s\n", i+1, r.Source, MutedStyle.Render(fmt.Sprintf("(%.2f)", r.Score)))
		excerpt := util.TruncateRunes(strings.Join(strings.Fields(r.Content), " "), 240)
		fmt.Fprintf(w, "   %s\n", excerpt)
	}
}

func writeStats(w io.Writer, st *api.Stats) {
	fmt.Fprintln(w, RenderLabel("Documents")+humanize.Comma(int64(st.TotalDocuments)))
	fmt.Fprintln(w, RenderLabel("Chunks")+humanize.Comma(int64(st.TotalChunks)))
	fmt.Fprintln(w, RenderLabel("Characters")+humanize.Comma(int64(st.TotalChars)))

	keys := make([]string, 0, len(st.Extra))
	for k := range st.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, RenderLabel(k)+fmt.Sprint(st.Extra[k]))
	}
}
