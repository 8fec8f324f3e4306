// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driveq/internal/export"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/upload"
	"github.com/jeranaias/driveq/internal/util"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// commandHandler runs one slash command.
type commandHandler func(m *Model, args []string) tea.Cmd

// commandInfo documents a command for /help.
type commandInfo struct {
	usage string
	desc  string
}

var commandHelp = []commandInfo{
	{"/upload [path]", "upload a manual (or the attached file)"},
	{"/docs [on|off]", "list documents, or toggle answering from them"},
	{"/delete <id|name>", "remove a document"},
	{"/search <query>", "search document text directly"},
	{"/stats", "document index statistics"},
	{"/clear", "clear the chat (documents stay)"},
	{"/reset", "clear the chat and start a new backend session"},
	{"/save [title]", "save the chat to history"},
	{"/history", "list saved chats"},
	{"/export [md|json] [path]", "write the chat to a file"},
	{"/help", "this help"},
	{"/quit", "exit"},
}

var commandHandlers = map[string]commandHandler{
	"upload":  handleUploadCommand,
	"u":       handleUploadCommand,
	"docs":    handleDocsCommand,
	"d":       handleDocsCommand,
	"delete":  handleDeleteCommand,
	"rm":      handleDeleteCommand,
	"search":  handleSearchCommand,
	"stats":   handleStatsCommand,
	"clear":   handleClearCommand,
	"reset":   handleResetCommand,
	"new":     handleResetCommand,
	"save":    handleSaveCommand,
	"history": handleHistoryCommand,
	"export":  handleExportCommand,
	"e":       handleExportCommand,
	"help":    handleHelpCommand,
	"h":       handleHelpCommand,
	"?":       handleHelpCommand,
	"quit":    handleQuitCommand,
	"q":       handleQuitCommand,
	"exit":    handleQuitCommand,
}

// handleCommand dispatches a slash command line.
func (m Model) handleCommand(line string) (Model, tea.Cmd) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return m, nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))

	handler, ok := commandHandlers[name]
	if !ok {
		cmd := m.setStatus(fmt.Sprintf("Unknown command %s. Type /help for the list.", parts[0]))
		return m, cmd
	}
	cmd := handler(&m, parts[1:])
	return m, cmd
}

// =============================================================================
// DOCUMENT COMMANDS
// =============================================================================

func handleUploadCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		return m.uploadSelectedCmd()
	}
	return m.uploadCmd(strings.Join(args, " "))
}

func handleDocsCommand(m *Model, args []string) tea.Cmd {
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on":
			m.shell.SetUseDocuments(true)
			return tea.Batch(m.sync(), m.setStatus(docsStatus(true)))
		case "off":
			m.shell.SetUseDocuments(false)
			return tea.Batch(m.sync(), m.setStatus(docsStatus(false)))
		default:
			return m.setStatus("Usage: /docs [on|off]")
		}
	}
	m.info = &infoPanel{title: docsTitle}
	return m.refreshDocumentsCmd()
}

func handleDeleteCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		return m.setStatus("Usage: /delete <id|name>")
	}
	return m.deleteCmd(m.resolveDocument(strings.Join(args, " ")))
}

// resolveDocument maps a filename from the list to its id; anything else is
// passed through as an id.
func (m *Model) resolveDocument(ref string) string {
	for _, d := range m.state.Documents {
		if d.ID == ref {
			return ref
		}
	}
	for _, d := range m.state.Documents {
		if strings.EqualFold(d.Filename, ref) {
			return d.ID
		}
	}
	return ref
}

func handleSearchCommand(m *Model, args []string) tea.Cmd {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return m.setStatus("Usage: /search <query>")
	}
	shell := m.shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		results, err := shell.Search(ctx, query, 5)
		return SearchDoneMsg{Query: query, Results: results, Err: err}
	}
}

func handleStatsCommand(m *Model, _ []string) tea.Cmd {
	shell := m.shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stats, err := shell.Stats(ctx)
		return StatsDoneMsg{Stats: stats, Err: err}
	}
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func handleClearCommand(m *Model, _ []string) tea.Cmd {
	m.shell.ClearChat()
	m.welcome = m.welcome.Reset()
	m.info = nil
	return m.sync()
}

func handleResetCommand(m *Model, _ []string) tea.Cmd {
	if m.chatBusy || m.state.Loading {
		return m.setStatus("Wait for the current answer, or press esc to cancel it")
	}
	m.info = nil
	m.welcome = m.welcome.Reset()
	shell := m.shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return ResetDoneMsg{Err: shell.ResetSession(ctx)}
	}
}

func handleSaveCommand(m *Model, args []string) tea.Cmd {
	return m.saveCmd(strings.TrimSpace(strings.Join(args, " ")), false)
}

func handleHistoryCommand(m *Model, _ []string) tea.Cmd {
	if m.opts.History == nil {
		return m.setStatus("History is disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metas, err := m.opts.History.ListConversations(ctx, 20)
	if err != nil {
		return m.setStatus("History unavailable: " + err.Error())
	}
	m.info = &infoPanel{title: "Saved chats", body: storage.FormatConversationList(metas)}
	return nil
}

func handleExportCommand(m *Model, args []string) tea.Cmd {
	format, path := "", ""
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "md", "markdown", "json":
			format = args[0]
			args = args[1:]
		}
	}
	if len(args) > 0 {
		path = upload.CleanPath(strings.Join(args, " "))
		if format == "" {
			format = export.FormatForPath(path)
		}
	}
	if format == "" {
		format = "md"
	}
	return m.exportCmd(format, path)
}

func handleHelpCommand(m *Model, _ []string) tea.Cmd {
	m.info = m.helpPanel()
	return nil
}

func handleQuitCommand(m *Model, _ []string) tea.Cmd {
	m.quitting = true
	m.Close()
	return tea.Quit
}

// =============================================================================
// WORKFLOW COMMANDS
// =============================================================================

// sendCmd asks one question. The draft has already been cleared.
func (m *Model) sendCmd(text string) tea.Cmd {
	ctx, cancel := m.chatCancel.begin()
	m.chatBusy = true
	shell := m.shell
	return tea.Batch(
		func() tea.Msg {
			defer cancel()
			return ChatDoneMsg{Err: shell.Submit(ctx, text)}
		},
		m.typing.Start("AutoQuery is typing"),
	)
}

// uploadCmd validates and uploads path in one step.
func (m *Model) uploadCmd(path string) tea.Cmd {
	if m.uploadBusy {
		return m.setStatus("An upload is already running")
	}
	ctx, cancel := m.uploadCancel.begin()
	m.uploadBusy = true
	m.info = nil
	shell := m.shell
	path = upload.CleanPath(path)
	return func() tea.Msg {
		defer cancel()
		return UploadDoneMsg{Result: shell.Upload(ctx, path)}
	}
}

// uploadSelectedCmd uploads the attached file.
func (m *Model) uploadSelectedCmd() tea.Cmd {
	if m.uploadBusy {
		return m.setStatus("An upload is already running")
	}
	if m.shell.Widget().State() != upload.FileSelected {
		return m.setStatus("Attach a file first: paste its path or use /upload <path>")
	}
	ctx, cancel := m.uploadCancel.begin()
	m.uploadBusy = true
	shell := m.shell
	return func() tea.Msg {
		defer cancel()
		return UploadDoneMsg{Result: shell.UploadSelected(ctx)}
	}
}

func (m *Model) refreshDocumentsCmd() tea.Cmd {
	shell := m.shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return DocumentsDoneMsg{Err: shell.RefreshDocuments(ctx)}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	shell, hist, log := m.shell, m.opts.History, m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := shell.DeleteDocument(ctx, id)
		if err == nil && hist != nil {
			if _, ferr := hist.ForgetDocument(ctx, id); ferr != nil {
				log.Warn("ledger cleanup failed", "id", id, "error", ferr)
			}
		}
		return DocumentsDoneMsg{Err: err}
	}
}

// saveCmd writes the transcript to history. An empty title keeps the
// previous one, or lets the store derive it from the first question.
func (m *Model) saveCmd(title string, auto bool) tea.Cmd {
	hist := m.opts.History
	if hist == nil {
		if auto {
			return nil
		}
		return m.setStatus("History is disabled")
	}
	if len(m.state.Messages) == 0 {
		if auto {
			return nil
		}
		return m.setStatus("Nothing to save yet")
	}
	if title != "" {
		m.convTitle = title
	}

	conv := &storage.Conversation{
		ID:        m.convID,
		Title:     m.convTitle,
		SessionID: m.state.SessionID,
		Messages:  m.state.Messages.Clone(),
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id, err := hist.SaveConversation(ctx, conv)
		return SavedMsg{ID: id, Auto: auto, Err: err}
	}
}

func (m *Model) exportCmd(format, path string) tea.Cmd {
	if len(m.state.Messages) == 0 {
		return m.setStatus("Nothing to export yet")
	}
	opts := export.DefaultOptions()
	if m.opts.ExportDir != "" {
		opts.OutputDir = m.opts.ExportDir
	}
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return m.setStatus(err.Error())
	}

	conv := export.FromTranscript(m.state.SessionID, m.state.Messages)
	if m.convTitle != "" {
		conv.Title = m.convTitle
	}
	return func() tea.Msg {
		if path == "" {
			written, err := export.ExportToFile(conv, exp, opts)
			return ExportedMsg{Path: written, Err: err}
		}
		return ExportedMsg{Path: path, Err: export.WriteFile(conv, exp, path)}
	}
}

// =============================================================================
// INFO PANELS
// =============================================================================

const (
	helpTitle = "Help"
	docsTitle = "Documents"
)

func (m Model) helpPanel() *infoPanel {
	width := 0
	for _, c := range commandHelp {
		width = max(width, len(c.usage))
	}
	var b strings.Builder
	for _, c := range commandHelp {
		b.WriteString(fmt.Sprintf("%-*s  %s\n", width, c.usage, c.desc))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return &infoPanel{title: helpTitle, body: strings.TrimRight(b.String(), "\n")}
}

func searchPanel(msg SearchDoneMsg) *infoPanel {
	title := fmt.Sprintf("Search: %s", msg.Query)
	if msg.Err != nil {
		return &infoPanel{title: title, body: errorText(msg.Err, "Search failed. Please try again.")}
	}
	if len(msg.Results) == 0 {
		return &infoPanel{title: title, body: "No matches."}
	}
	var b strings.Builder
	for i, r := range msg.Results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d. %s (%.2f)\n   %s", i+1, r.Source, r.Score,
			util.TruncateRunes(strings.Join(strings.Fields(r.Content), " "), 160)))
	}
	return &infoPanel{title: title, body: b.String()}
}

func statsPanel(msg StatsDoneMsg) *infoPanel {
	if msg.Err != nil {
		return &infoPanel{title: "Stats", body: errorText(msg.Err, "Could not load statistics.")}
	}
	s := msg.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "Documents: %d\nChunks:    %d\nCharacters: %d", s.TotalDocuments, s.TotalChunks, s.TotalChars)

	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, s.Extra[k])
	}
	return &infoPanel{title: "Stats", body: b.String()}
}
