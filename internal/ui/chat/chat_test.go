// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/api/apitest"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/session"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/ui/components"
	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/upload"
)

// =============================================================================
// HARNESS
// =============================================================================

func newTestModel(t *testing.T, opts Options) (Model, *apitest.Backend) {
	t.Helper()
	b := apitest.New(t)
	c := api.NewClient(b.URL()).WithTimeout(5 * time.Second)
	sh := session.NewShell(c, session.NewStore(session.NewState("sess-test")), nil)
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeDark)
	}
	m := New(sh, opts)
	t.Cleanup(m.Close)
	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, b
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func stepCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func command(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m = typeText(t, m, line)
	return stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// await runs cmd, fanning out batches, and returns the first message of
// type T. Commands that never finish (tickers, store listeners) are left
// behind.
func await[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	require.NotNil(t, cmd, "expected a command")

	out := make(chan tea.Msg, 16)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					run(sub)
				}
				return
			}
			out <- msg
		}()
	}
	run(cmd)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-out:
			if want, ok := msg.(T); ok {
				return want
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("m", size)), 0o600))
	return path
}

// =============================================================================
// INPUT
// =============================================================================

func TestEnter_SendsAndClearsDraft(t *testing.T) {
	m, b := newTestModel(t, Options{})
	b.SetAnswer("Every 30,000 miles.", "owner_manual.pdf")

	m = typeText(t, m, "How often to change spark plugs?")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.Draft(), "draft clears before the reply arrives")

	done := await[ChatDoneMsg](t, cmd)
	require.NoError(t, done.Err)
	m = step(t, m, done)

	msgs := m.State().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "How often to change spark plugs?", msgs[0].Content)
	assert.Equal(t, "Every 30,000 miles.", msgs[1].Content)
	assert.Contains(t, m.View(), "Every 30,000 miles.")
	assert.Contains(t, m.View(), "Sources: owner_manual.pdf")
}

func TestEnter_EmptyDraftIsNoop(t *testing.T) {
	m, b := newTestModel(t, Options{})

	m = typeText(t, m, "   ")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, m.State().Messages)
	assert.Zero(t, b.Calls(apitest.RouteChat))
}

func TestEnter_InertWhileLoading(t *testing.T) {
	m, b := newTestModel(t, Options{})
	b.SetChatDelay(300 * time.Millisecond)

	m = typeText(t, m, "first")
	m, first := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = typeText(t, m, "second")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "second", m.Draft(), "the draft stays while a request is in flight")

	m = step(t, m, await[ChatDoneMsg](t, first))
	assert.Equal(t, 1, b.Calls(apitest.RouteChat))

	m, cmd = stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NoError(t, await[ChatDoneMsg](t, cmd).Err)
	assert.Equal(t, 2, b.Calls(apitest.RouteChat))
}

func TestNewlineKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"alt+enter", tea.KeyMsg{Type: tea.KeyEnter, Alt: true}},
		{"ctrl+j", tea.KeyMsg{Type: tea.KeyCtrlJ}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, b := newTestModel(t, Options{})
			m = typeText(t, m, "front")
			m = step(t, m, tt.key)
			m = typeText(t, m, "rear")

			assert.Equal(t, "front\nrear", m.Draft())
			assert.Empty(t, m.State().Messages)
			assert.Zero(t, b.Calls(apitest.RouteChat))
		})
	}
}

func TestEscCancelsInFlightRequest(t *testing.T) {
	m, b := newTestModel(t, Options{})
	b.SetChatDelay(5 * time.Second)

	m = typeText(t, m, "slow question")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	done := await[ChatDoneMsg](t, cmd)
	require.Error(t, done.Err)
	m = step(t, m, done)

	last := m.State().Messages.Last()
	assert.Equal(t, model.RoleError, last.Role)
	assert.Equal(t, session.MsgCanceled, last.Content)
	assert.False(t, m.State().Loading)
}

func TestExamplePrompt_TabThenEnter(t *testing.T) {
	m, b := newTestModel(t, Options{})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Contains(t, m.View(), "> ")

	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	done := await[ChatDoneMsg](t, cmd)
	require.NoError(t, done.Err)
	m = step(t, m, done)

	require.NotEmpty(t, b.Chats())
	assert.Equal(t, components.ExamplePrompts[0], b.Chats()[0].Message)
	assert.Equal(t, components.ExamplePrompts[0], m.State().Messages[0].Content)
}

func TestWelcomeShownWhenEmpty(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	view := m.View()
	assert.Contains(t, view, "DriveQuery")
	for _, p := range components.ExamplePrompts {
		assert.Contains(t, view, p)
	}
}

// =============================================================================
// UPLOADS
// =============================================================================

func TestPastedPathAttachesThenUploads(t *testing.T) {
	m, b := newTestModel(t, Options{})
	path := writeFile(t, "owner_manual.pdf", 200)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'" + path + "'"), Paste: true})
	assert.Empty(t, m.Draft(), "a dropped file does not land in the draft")
	assert.Equal(t, upload.FileSelected, m.shell.Widget().State())
	assert.Zero(t, b.TotalCalls())

	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	done := await[UploadDoneMsg](t, cmd)
	require.NoError(t, done.Result.Err)
	m = step(t, m, done)

	assert.Equal(t, []string{"owner_manual.pdf"}, b.Documents())
	assert.Equal(t, 1, b.Calls(apitest.RouteList))
	s := m.State()
	require.Len(t, s.Documents, 1)
	assert.Equal(t, model.RoleSystem, s.Messages.Last().Role)
	assert.False(t, s.Uploading)
}

func TestPastedTextIsNotAFile(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("fuse box"), Paste: true})
	assert.Equal(t, "fuse box", m.Draft())
	assert.Equal(t, upload.Idle, m.shell.Widget().State())
}

func TestPastedDisallowedFileIsRejected(t *testing.T) {
	m, b := newTestModel(t, Options{})
	path := writeFile(t, "dash.png", 10)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(path), Paste: true})

	s := m.State()
	assert.Equal(t, "Only PDF and DOCX files are supported", s.Notice)
	assert.Equal(t, model.RoleError, s.Messages.Last().Role)
	assert.Zero(t, b.TotalCalls())
	assert.Contains(t, m.View(), "Only PDF and DOCX files are supported")
}

func TestUploadCommand_OversizeNeverHitsNetwork(t *testing.T) {
	m, b := newTestModel(t, Options{})
	path := writeFile(t, "service_manual.pdf", 15<<20)

	m, cmd := command(t, m, "/upload "+path)
	done := await[UploadDoneMsg](t, cmd)
	require.Error(t, done.Result.Err)
	m = step(t, m, done)

	assert.Equal(t, "File size must be less than 10MB", m.State().Notice)
	assert.Zero(t, b.TotalCalls())
}

func TestUploadKeyWithoutAttachment(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	assert.Contains(t, m.statusText, "Attach a file first")
}

func TestEscClearsAttachment(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(writeFile(t, "m.pdf", 10)), Paste: true})
	require.Equal(t, upload.FileSelected, m.shell.Widget().State())

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, upload.Idle, m.shell.Widget().State())
}

// =============================================================================
// COMMANDS
// =============================================================================

func loadDocuments(t *testing.T, m Model) Model {
	t.Helper()
	return step(t, m, await[DocumentsDoneMsg](t, m.refreshDocumentsCmd()))
}

func TestClearCommand_KeepsDocuments(t *testing.T) {
	m, b := newTestModel(t, Options{})
	b.AddDocument("owner_manual.pdf", 100)
	m = loadDocuments(t, m)

	m = typeText(t, m, "question")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, await[ChatDoneMsg](t, cmd))
	require.Len(t, m.State().Messages, 2)

	m, _ = command(t, m, "/clear")
	assert.Empty(t, m.State().Messages)
	assert.Len(t, m.State().Documents, 1)
}

func TestDocsCommand_Toggle(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	require.True(t, m.State().UseDocuments)

	m, _ = command(t, m, "/docs off")
	assert.False(t, m.State().UseDocuments)
	m, _ = command(t, m, "/docs on")
	assert.True(t, m.State().UseDocuments)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.False(t, m.State().UseDocuments)
}

func TestDeleteCommand_ByName(t *testing.T) {
	m, b := newTestModel(t, Options{})
	b.AddDocument("owner_manual.pdf", 100)
	b.AddDocument("warranty.pdf", 100)
	m = loadDocuments(t, m)

	m, cmd := command(t, m, "/delete warranty.pdf")
	done := await[DocumentsDoneMsg](t, cmd)
	require.NoError(t, done.Err)
	m = step(t, m, done)

	assert.Equal(t, []string{"owner_manual.pdf"}, b.Documents())
	assert.Len(t, m.State().Documents, 1)
}

func TestSearchAndStatsCommands(t *testing.T) {
	m, b := newTestModel(t, Options{})
	b.AddDocument("owner_manual.pdf", 1000)

	m, cmd := command(t, m, "/search tire pressure")
	m = step(t, m, await[SearchDoneMsg](t, cmd))
	require.NotNil(t, m.info)
	assert.Contains(t, m.info.body, "owner_manual.pdf")
	assert.Contains(t, m.View(), "Search: tire pressure")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.info)

	m, cmd = command(t, m, "/stats")
	m = step(t, m, await[StatsDoneMsg](t, cmd))
	require.NotNil(t, m.info)
	assert.Contains(t, m.info.body, "Documents: 1")
	assert.Contains(t, m.info.body, "embedding_model: fake-embed")
}

func TestResetCommand(t *testing.T) {
	m, b := newTestModel(t, Options{})
	m = typeText(t, m, "question")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, await[ChatDoneMsg](t, cmd))

	m, cmd = command(t, m, "/reset")
	m = step(t, m, await[ResetDoneMsg](t, cmd))

	assert.Empty(t, m.State().Messages)
	assert.NotEqual(t, "sess-test", m.State().SessionID)
	assert.Equal(t, 1, b.Calls(apitest.RouteClearSession))
}

func TestSaveCommand(t *testing.T) {
	hist, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	m, _ := newTestModel(t, Options{History: hist})

	m, _ = command(t, m, "/save")
	assert.Contains(t, m.statusText, "Nothing to save")

	m = typeText(t, m, "Torque spec for front axle nut")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, await[ChatDoneMsg](t, cmd))

	m, cmd = command(t, m, "/save Axle notes")
	saved := await[SavedMsg](t, cmd)
	require.NoError(t, saved.Err)
	m = step(t, m, saved)
	assert.Equal(t, saved.ID, m.ConversationID())

	conv, err := hist.LoadConversation(t.Context(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Axle notes", conv.Title)
	assert.Len(t, conv.Messages, 2)

	// A second save updates the same entry.
	m, cmd = command(t, m, "/save")
	again := await[SavedMsg](t, cmd)
	require.NoError(t, again.Err)
	assert.Equal(t, saved.ID, again.ID)
}

func TestExportCommand_JSON(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeText(t, m, "Fuse box diagram location")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, await[ChatDoneMsg](t, cmd))

	path := filepath.Join(t.TempDir(), "chat.json")
	m, cmd = command(t, m, "/export "+path)
	done := await[ExportedMsg](t, cmd)
	require.NoError(t, done.Err)
	m = step(t, m, done)
	assert.Contains(t, m.statusText, "Exported to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Fuse box diagram location", doc["title"])
}

func TestUnknownCommand(t *testing.T) {
	m, b := newTestModel(t, Options{})
	m, _ = command(t, m, "/frobnicate")
	assert.Contains(t, m.statusText, "Unknown command /frobnicate")
	assert.Zero(t, b.TotalCalls())
}

func TestHelpCommand(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m, _ = command(t, m, "/help")
	require.NotNil(t, m.info)
	assert.Contains(t, m.info.body, "/upload [path]")
	assert.Contains(t, m.info.body, "/export [md|json] [path]")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyF1})
	assert.Nil(t, m.info, "f1 toggles help off")
}

func TestQuitCommand(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m, cmd := command(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

// =============================================================================
// STATE FLOW
// =============================================================================

func TestStoreUpdatesReachTheView(t *testing.T) {
	m, _ := newTestModel(t, Options{})

	m.shell.Store().Dispatch(session.SystemNote{Text: "Uploaded owner_manual.pdf"})
	m = step(t, m, StreamTickMsg{})

	assert.Equal(t, "Uploaded owner_manual.pdf", m.State().Messages.Last().Content)
	assert.Contains(t, m.View(), "Uploaded owner_manual.pdf")
}

func TestRenderCachePrunes(t *testing.T) {
	theme := styles.NewTheme(styles.ModeDark)
	c := newRenderCache()
	opts := components.TranscriptOptions{Width: 80}

	var msgs model.Transcript
	msgs = msgs.Append(model.NewUserMessage("a"), model.NewAssistantMessage("b", nil))
	first := c.transcript(theme, msgs, opts)
	assert.Len(t, c.entries, 2)
	assert.Equal(t, first, c.transcript(theme, msgs, opts))

	c.transcript(theme, msgs[:1], opts)
	assert.Len(t, c.entries, 1)
}
