// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/config"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/session"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/upload"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader is the REPL's input source.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// linerReader edits lines with history, persisted under the config dir.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &linerReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (r *linerReader) Close() {
	if err := config.EnsureDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// plainReader reads lines from a pipe. The prompt is not echoed.
type plainReader struct {
	sc *bufio.Scanner
}

func (r *plainReader) ReadLine(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *plainReader) Close() {}

func (a *app) newLineReader() lineReader {
	if a.interactive() {
		return newLinerReader()
	}
	return &plainReader{sc: bufio.NewScanner(a.in)}
}

// =============================================================================
// REPL
// =============================================================================

// repl is the line-mode chat. It drives the same session shell as the TUI
// and prints each outcome as it lands in the store.
type repl struct {
	a       *app
	shell   *session.Shell
	history *storage.Store
	out     io.Writer
	convID  string
}

func newChatCmd(a *app) *cobra.Command {
	var noDocs, stream bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode, without the full-screen interface",
		Long: `Chat in line mode. Arrow keys recall earlier questions.

Commands: /upload <path>, /docs [on|off], /search <query>, /clear, /reset,
/save [title], /help, /quit.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("stream") {
				a.cfg.Chat.Stream = stream
			}
			r := &repl{a: a, shell: a.newShell(a.sessionID()), out: a.out}
			if noDocs {
				r.shell.SetUseDocuments(false)
			}
			if hist, err := a.openHistory(); err != nil {
				a.log.Warn("history unavailable", "error", err)
			} else {
				defer hist.Close()
				r.history = hist
				r.shell.OnUpload(ledgerRecorder(hist, storage.SourceCLI, a.log))
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&noDocs, "no-docs", false, "answer without the uploaded documents")
	cmd.Flags().BoolVar(&stream, "stream", false, "print answers as they are generated")
	return cmd
}

func (r *repl) run(ctx context.Context) error {
	in := r.a.newLineReader()
	defer in.Close()

	if r.a.interactive() {
		r.printWelcome()
	}

	for {
		input, err := in.ReadLine(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
			return nil
		case strings.HasPrefix(input, "/"):
			if !r.command(ctx, input) {
				return nil
			}
		default:
			r.ask(ctx, input)
		}
	}
}

func (r *repl) printWelcome() {
	s := r.shell.Store().Snapshot()
	fmt.Fprintln(r.out, TitleStyle.Render("DriveQuery")+MutedStyle.Render("  ask your owner's manual"))
	fmt.Fprintln(r.out, MutedStyle.Render(fmt.Sprintf("backend %s  session %s", r.a.cfg.API.BaseURL, shortID(s.SessionID))))
	fmt.Fprintln(r.out, MutedStyle.Render("Type /help for commands, /quit or Ctrl+D to leave."))
	fmt.Fprintln(r.out)
}

// ask sends one question. Ctrl+C while waiting cancels the request only.
func (r *repl) ask(ctx context.Context, text string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	printed := 0
	if r.shell.Streaming() {
		unsubscribe := r.shell.Store().Subscribe(func(s session.State) {
			last := s.Messages.Last()
			if last.Role != model.RoleAssistant || !last.IsStreaming {
				return
			}
			if printed == 0 && last.Content != "" {
				fmt.Fprint(r.out, AnswerLabelStyle.Render("AutoQuery: "))
			}
			if len(last.Content) > printed {
				fmt.Fprint(r.out, last.Content[printed:])
				printed = len(last.Content)
			}
		})
		defer unsubscribe()
	}

	err := r.shell.Submit(ctx, text)
	if errors.Is(err, session.ErrBusy) {
		fmt.Fprintln(r.out, WarningStyle.Render("Still waiting for the last answer."))
		return
	}

	last := r.shell.Store().Snapshot().Messages.Last()
	switch last.Role {
	case model.RoleAssistant:
		if printed > 0 {
			fmt.Fprintln(r.out, last.Content[min(printed, len(last.Content)):])
			r.a.printSources(last.Sources)
		} else {
			fmt.Fprintln(r.out, AnswerLabelStyle.Render("AutoQuery:"))
			r.a.printAnswer(last.Content, last.Sources, false)
		}
	case model.RoleError:
		if printed > 0 {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+last.Content)
	}
	fmt.Fprintln(r.out)
}

// command runs a slash command and reports whether the REPL continues.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "/quit", "/q", "/exit":
		return false

	case "/help", "/h", "/?":
		r.printHelp()

	case "/upload", "/u":
		if rest == "" {
			fmt.Fprintln(r.out, WarningStyle.Render("Usage: /upload <path>"))
			break
		}
		res := r.shell.Upload(ctx, upload.CleanPath(rest))
		if res.OK() {
			fmt.Fprintln(r.out, SuccessStyle.Render(uploadSummary(res)))
		} else {
			fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+uploadSummary(res))
		}

	case "/docs", "/d":
		if len(args) > 0 {
			on := strings.EqualFold(args[0], "on")
			r.shell.SetUseDocuments(on)
			if on {
				fmt.Fprintln(r.out, "Answering from your documents.")
			} else {
				fmt.Fprintln(r.out, "Answering without documents.")
			}
			break
		}
		if err := r.shell.RefreshDocuments(ctx); err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+api.UserMessage(err, ""))
			break
		}
		writeDocumentTable(r.out, r.shell.Store().Snapshot().Documents)

	case "/search":
		if rest == "" {
			fmt.Fprintln(r.out, WarningStyle.Render("Usage: /search <query>"))
			break
		}
		results, err := r.shell.Search(ctx, rest, api.DefaultTopK)
		if err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+api.UserMessage(err, ""))
			break
		}
		writeSearchResults(r.out, results)

	case "/clear":
		r.shell.ClearChat()
		r.convID = ""
		fmt.Fprintln(r.out, "Chat cleared. Your documents are still uploaded.")

	case "/reset", "/new":
		if err := r.shell.ResetSession(ctx); err != nil {
			fmt.Fprintln(r.out, WarningStyle.Render("The backend could not forget the old session: ")+api.UserMessage(err, ""))
		}
		r.convID = ""
		fmt.Fprintln(r.out, "Started a new session "+shortID(r.shell.Store().Snapshot().SessionID)+".")

	case "/save":
		r.save(ctx, rest)

	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for the list.\n", fields[0])
	}
	return true
}

func (r *repl) save(ctx context.Context, title string) {
	if r.history == nil {
		fmt.Fprintln(r.out, WarningStyle.Render("History is disabled."))
		return
	}
	s := r.shell.Store().Snapshot()
	if len(s.Messages) == 0 {
		fmt.Fprintln(r.out, "Nothing to save yet.")
		return
	}
	id, err := r.history.SaveConversation(ctx, &storage.Conversation{
		ID:        r.convID,
		Title:     title,
		SessionID: s.SessionID,
		Messages:  s.Messages.Clone(),
	})
	if err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render("Save failed: ")+err.Error())
		return
	}
	r.convID = id
	fmt.Fprintln(r.out, "Saved as "+id+".")
}

func (r *repl) printHelp() {
	rows := [][2]string{
		{"/upload <path>", "upload a manual"},
		{"/docs [on|off]", "list documents, or toggle answering from them"},
		{"/search <query>", "search the uploaded documents"},
		{"/clear", "clear the chat, keep documents"},
		{"/reset", "start a new backend session"},
		{"/save [title]", "save the chat to history"},
		{"/quit", "leave (also Ctrl+D)"},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %-18s %s\n", row[0], MutedStyle.Render(row[1]))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
