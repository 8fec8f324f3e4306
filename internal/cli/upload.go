// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/session"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/upload"
)

// uploadOutcome is one file's line in upload --json.
type uploadOutcome struct {
	Path       string `json:"path"`
	Filename   string `json:"filename"`
	Status     string `json:"status"` // uploaded, duplicate, rejected, failed
	DocumentID string `json:"document_id,omitempty"`
	CharCount  int    `json:"char_count,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newUploadCmd(a *app) *cobra.Command {
	var asJSON, force bool
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload owner's manuals (PDF or Word)",
		Long: `Upload one or more manuals. Each file is checked locally first: only PDF
and Word documents up to the configured size are sent.

A file whose contents were uploaded before is skipped unless --force is given.`,
		Example: `  driveq upload ~/Downloads/owner_manual.pdf
  driveq upload --json manuals/*.pdf`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			hist, err := a.openHistory()
			if err != nil {
				a.log.Warn("upload ledger unavailable", "error", err)
				hist = nil
			} else {
				defer hist.Close()
			}

			outcomes, firstErr := a.uploadFiles(ctx, args, hist, force)
			if asJSON {
				return outputJSON(a.out, "upload", func() (any, error) {
					return outcomes, firstErr
				})
			}
			for _, o := range outcomes {
				fmt.Fprintln(a.out, o.line())
			}
			if firstErr != nil {
				return &SilentError{Err: firstErr}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&force, "force", false, "upload even if the same file was uploaded before")
	return cmd
}

func (o uploadOutcome) line() string {
	switch o.Status {
	case "uploaded":
		return SuccessStyle.Render("✓ ") + fmt.Sprintf("Upload successful: %s added (%d characters, %d chunks)",
			o.Filename, o.CharCount, o.ChunkCount)
	case "duplicate":
		return MutedStyle.Render("= ") + fmt.Sprintf("%s already uploaded as %s (use --force to send again)", o.Filename, o.DocumentID)
	default:
		return ErrorStyle.Render("✗ ") + fmt.Sprintf("%s: %s", o.Filename, o.Error)
	}
}

// uploadFiles uploads each path in turn. The first failure is returned
// alongside every outcome so later files are still attempted.
func (a *app) uploadFiles(ctx context.Context, paths []string, ledger *storage.Store, force bool) ([]uploadOutcome, error) {
	widget := upload.NewWidget(a.policy())
	record := ledgerRecorder(ledger, storage.SourceCLI, a.log)

	var firstErr error
	outcomes := make([]uploadOutcome, 0, len(paths))
	for _, p := range paths {
		path := upload.CleanPath(p)
		o := uploadOutcome{Path: path, Filename: upload.DisplayName(path)}

		if ledger != nil && !force {
			if prior, ok := lookupPrior(ctx, ledger, path); ok {
				o.Status, o.DocumentID = "duplicate", prior.DocumentID
				outcomes = append(outcomes, o)
				continue
			}
		}

		res := widget.Submit(ctx, path, a.client)
		if res.OK() {
			record(res)
			o.Status = "uploaded"
			o.Filename = firstNonEmpty(res.Upload.Filename, o.Filename)
			o.DocumentID = res.Document.ID
			o.CharCount, o.ChunkCount = res.Upload.CharCount, res.Upload.ChunkCount
		} else {
			o.Status = "failed"
			if api.IsValidation(res.Err) {
				o.Status = "rejected"
			}
			o.Error = api.UserMessage(res.Err, api.MsgUploadFailed)
			if firstErr == nil {
				firstErr = res.Err
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, firstErr
}

func lookupPrior(ctx context.Context, ledger *storage.Store, path string) (storage.UploadRecord, bool) {
	hash, err := storage.HashFile(path)
	if err != nil {
		return storage.UploadRecord{}, false
	}
	rec, ok, err := ledger.LookupUpload(ctx, hash)
	if err != nil {
		return storage.UploadRecord{}, false
	}
	return rec, ok
}

// ledgerRecorder returns an upload hook that records successes in the
// ledger. A nil ledger records nothing.
func ledgerRecorder(ledger *storage.Store, source string, log *slog.Logger) func(upload.Result) {
	return func(res upload.Result) {
		if ledger == nil || !res.OK() || res.Upload == nil {
			return
		}
		hash, err := storage.HashFile(res.File.Path)
		if err != nil {
			log.Warn("ledger hash failed", "file", res.File.Path, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rec := storage.UploadRecord{
			Hash:       hash,
			Path:       res.File.Path,
			Filename:   res.File.Name,
			DocumentID: res.Document.ID,
			SizeBytes:  res.File.Size,
			CharCount:  res.Upload.CharCount,
			ChunkCount: res.Upload.ChunkCount,
			Source:     source,
		}
		if err := ledger.RecordUpload(ctx, rec); err != nil {
			log.Warn("ledger record failed", "file", res.File.Path, "error", err)
		}
	}
}

// uploadSummary is the one-line text for a finished upload.
func uploadSummary(res upload.Result) string {
	if res.OK() {
		return session.UploadSuccessText(res.Upload)
	}
	return api.UserMessage(res.Err, api.MsgUploadFailed)
}
