// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/ui/components"
)

// maxStdinQuestion bounds a question read from a pipe.
const maxStdinQuestion = 64 * 1024

type askOptions struct {
	stream bool
	noDocs bool
	json   bool
	raw    bool
}

// askResult is the --json payload of ask.
type askResult struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

func newAskCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Long: `Ask one question and print the answer with its sources.

The question may also be piped on stdin. Answers are rendered as Markdown
when stdout is a terminal.`,
		Example: `  driveq ask "How often should I change the spark plugs?"
  echo "What is the recommended tire pressure?" | driveq ask --json
  driveq ask --stream --no-docs "What does a P0420 code mean?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := a.readQuestion(args)
			if err != nil {
				if opts.json {
					return outputJSON(a.out, "ask", func() (any, error) { return nil, err })
				}
				return err
			}
			return a.runAsk(cmd.Context(), question, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.stream, "stream", false, "print the answer as it is generated")
	f.BoolVar(&opts.noDocs, "no-docs", false, "answer without the uploaded documents")
	f.BoolVar(&opts.json, "json", false, "print the result as JSON")
	f.BoolVar(&opts.raw, "raw", false, "print the answer without Markdown rendering")
	return cmd
}

// interactive reports whether input comes from a person at a terminal.
func (a *app) interactive() bool {
	return a.stdin && IsTTY()
}

// readQuestion joins args, falling back to piped stdin.
func (a *app) readQuestion(args []string) (string, error) {
	q := strings.Join(args, " ")
	if (strings.TrimSpace(q) == "" || q == "-") && !a.interactive() {
		data, err := io.ReadAll(io.LimitReader(a.in, maxStdinQuestion))
		if err != nil {
			return "", fmt.Errorf("read question: %w", err)
		}
		q = string(data)
	}
	q = strings.TrimSpace(q)
	if err := api.ValidateMessage(q); err != nil {
		return "", err
	}
	return q, nil
}

func (a *app) runAsk(ctx context.Context, question string, opts askOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	req := api.ChatRequest{
		Message:      question,
		SessionID:    a.sessionID(),
		UseDocuments: a.cfg.Chat.UseDocuments && !opts.noDocs,
	}
	a.log.Debug("ask", "session", req.SessionID, "use_documents", req.UseDocuments)

	if opts.json {
		return outputJSON(a.out, "ask", func() (any, error) {
			reply, err := a.client.SendMessage(ctx, req)
			if err != nil {
				return nil, err
			}
			return askResult{
				Question:  question,
				Answer:    reply.Text,
				Sources:   nonNil(reply.Sources),
				SessionID: firstNonEmpty(reply.SessionID, req.SessionID),
			}, nil
		})
	}

	if opts.stream || a.cfg.Chat.Stream {
		return a.streamAnswer(ctx, req)
	}

	reply, err := a.client.SendMessage(ctx, req)
	if err != nil {
		return err
	}
	a.printAnswer(reply.Text, reply.Sources, opts.raw)
	return nil
}

// streamAnswer prints chunks as they arrive.
func (a *app) streamAnswer(ctx context.Context, req api.ChatRequest) error {
	stream, err := a.client.StreamMessage(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	wrote := false
	for ev := range stream.Events() {
		switch ev.Kind {
		case api.EventChunk:
			fmt.Fprint(a.out, ev.Text)
			wrote = true
		case api.EventDone:
			if wrote {
				fmt.Fprintln(a.out)
			}
			a.printSources(ev.Sources)
			return nil
		case api.EventError:
			if wrote {
				fmt.Fprintln(a.out)
			}
			return ev.Err
		}
	}
	if wrote {
		fmt.Fprintln(a.out)
	}
	return stream.Interrupted()
}

// printAnswer renders an answer as Markdown on a terminal and verbatim
// anywhere else.
func (a *app) printAnswer(text string, sources []string, raw bool) {
	if !raw && a.cfg.UI.Markdown && isTerminalWriter(a.out) {
		md := components.NewMarkdown(a.theme().GlamourStyle())
		fmt.Fprintln(a.out, md.Render(text, answerWidth()))
	} else {
		fmt.Fprintln(a.out, text)
	}
	a.printSources(sources)
}

func (a *app) printSources(sources []string) {
	if len(sources) == 0 {
		return
	}
	width := DefaultTerminalWidth
	if isTerminalWriter(a.out) {
		width = answerWidth()
	}
	fmt.Fprintln(a.out, MutedStyle.Render(components.SourcesLine(sources, width)))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
