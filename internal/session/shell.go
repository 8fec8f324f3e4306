// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/logging"
	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/upload"
)

// ErrBusy is returned when a workflow's in-flight slot is taken. Requests
// are never queued.
var ErrBusy = errors.New("a request is already in progress")

// MsgCanceled replaces the network message when the user aborted.
const MsgCanceled = "Request cancelled."

// Backend is the API surface the shell drives. *api.Client satisfies it.
type Backend interface {
	upload.Uploader
	SendMessage(ctx context.Context, in api.ChatRequest) (*api.ChatReply, error)
	StreamMessage(ctx context.Context, in api.ChatRequest) (*api.Stream, error)
	ListDocuments(ctx context.Context) ([]api.DocumentInfo, error)
	DeleteDocument(ctx context.Context, id string) error
	SearchDocuments(ctx context.Context, query string, topK int) ([]api.SearchResult, error)
	DocumentStats(ctx context.Context) (*api.Stats, error)
	ClearSession(ctx context.Context, id string) error
}

// Shell runs the client's workflows against a Backend and records every
// outcome in its Store.
type Shell struct {
	backend   Backend
	store     *Store
	widget    *upload.Widget
	streaming bool
	log       *slog.Logger
	onUpload  func(upload.Result)
}

// NewShell wires a shell. A nil widget gets the default policy.
func NewShell(b Backend, store *Store, w *upload.Widget) *Shell {
	if w == nil {
		w = upload.NewWidget(upload.DefaultPolicy())
	}
	return &Shell{backend: b, store: store, widget: w}
}

// WithStreaming makes Submit use the streaming endpoint.
func (s *Shell) WithStreaming(on bool) *Shell {
	s.streaming = on
	return s
}

// WithLogger sets the logger.
func (s *Shell) WithLogger(l *slog.Logger) *Shell {
	s.log = l
	return s
}

// OnUpload registers a hook called after every upload attempt that passed
// local validation.
func (s *Shell) OnUpload(fn func(upload.Result)) *Shell {
	s.onUpload = fn
	return s
}

// Store returns the shell's store.
func (s *Shell) Store() *Store { return s.store }

// Widget returns the shell's upload widget.
func (s *Shell) Widget() *upload.Widget { return s.widget }

// Streaming reports the chat transport in use.
func (s *Shell) Streaming() bool { return s.streaming }

func (s *Shell) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return logging.L()
}

// =============================================================================
// CHAT
// =============================================================================

// Submit sends text with the configured transport.
func (s *Shell) Submit(ctx context.Context, text string) error {
	if s.streaming {
		return s.Stream(ctx, text)
	}
	return s.Send(ctx, text)
}

// claimChat validates text and takes the chat slot, appending the user's
// message. Validation failures set the notice and leave the transcript alone.
func (s *Shell) claimChat(text string, extra ...Action) (State, string, error) {
	if err := api.ValidateMessage(text); err != nil {
		s.store.Dispatch(NoticeSet{Text: api.UserMessage(err, "")})
		return State{}, "", err
	}
	text = strings.TrimSpace(text)

	actions := append([]Action{UserSubmitted{Message: model.NewUserMessage(text)}}, extra...)
	st, ok := s.store.begin(func(st State) bool { return !st.Loading }, actions...)
	if !ok {
		return State{}, "", ErrBusy
	}
	return st, text, nil
}

// Send asks one question over the request/response endpoint. The outcome
// is always recorded in the transcript; the error is returned as well so
// non-interactive callers can report it.
func (s *Shell) Send(ctx context.Context, text string) error {
	st, text, err := s.claimChat(text)
	if err != nil {
		return err
	}

	reply, err := s.backend.SendMessage(ctx, api.ChatRequest{
		Message:      text,
		SessionID:    st.SessionID,
		UseDocuments: st.UseDocuments,
	})
	if err != nil {
		s.logger().Warn("chat failed", "error", err)
		s.store.Dispatch(RequestFailed{Text: chatErrorText(ctx, err)})
		return err
	}

	s.store.Dispatch(ReplyReceived{Text: reply.Text, Sources: reply.Sources, SessionID: reply.SessionID})
	return nil
}

// Stream asks one question over the streaming endpoint, growing an
// assistant message as chunks arrive. A failure mid-stream keeps the
// partial answer above the error text.
func (s *Shell) Stream(ctx context.Context, text string) error {
	st, text, err := s.claimChat(text, StreamStarted{Message: model.NewStreamingMessage()})
	if err != nil {
		return err
	}

	stream, err := s.backend.StreamMessage(ctx, api.ChatRequest{
		Message:      text,
		SessionID:    st.SessionID,
		UseDocuments: st.UseDocuments,
	})
	if err != nil {
		s.logger().Warn("stream open failed", "error", err)
		s.store.Dispatch(StreamFailed{Reason: chatErrorText(ctx, err)})
		return err
	}
	defer stream.Close()

	for ev := range stream.Events() {
		switch ev.Kind {
		case api.EventChunk:
			s.store.Dispatch(StreamChunk{Text: ev.Text})
		case api.EventDone:
			s.store.Dispatch(StreamFinished{Sources: ev.Sources, SessionID: ev.SessionID})
			return nil
		case api.EventError:
			s.logger().Warn("stream failed", "error", ev.Err)
			s.store.Dispatch(StreamFailed{Reason: chatErrorText(ctx, ev.Err)})
			return ev.Err
		}
	}

	err = stream.Interrupted()
	s.store.Dispatch(StreamFailed{Reason: chatErrorText(ctx, err)})
	return err
}

func chatErrorText(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return MsgCanceled
	}
	return api.UserMessage(err, api.MsgChatFailed)
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadSuccessText is the system message for an accepted upload.
func UploadSuccessText(r *api.UploadResult) string {
	return fmt.Sprintf("✓ Upload successful: %s added (%d characters, %d chunks)",
		r.Filename, r.CharCount, r.ChunkCount)
}

func uploadErrorText(err error) string {
	switch {
	case api.IsValidation(err):
		return api.UserMessage(err, "")
	case api.IsNetwork(err):
		return api.MsgUploadFailed
	case errors.Is(err, fs.ErrNotExist):
		return "File not found"
	case errors.Is(err, upload.ErrNoFile):
		return "No file selected"
	}
	return api.UserMessage(err, api.MsgUploadFailed)
}

// Upload validates path, uploads it and refreshes the document list once.
// Local rejections set the notice and append an error message before
// returning, without any network traffic.
func (s *Shell) Upload(ctx context.Context, path string) upload.Result {
	if _, ok := s.store.begin(func(st State) bool { return !st.Uploading }, UploadStarted{Filename: path}); !ok {
		return upload.Result{Err: ErrBusy}
	}

	if _, err := s.widget.Select(path); err != nil {
		if errors.Is(err, upload.ErrBusy) {
			s.store.Dispatch(UploadFinished{})
			return upload.Result{Err: ErrBusy}
		}
		text := uploadErrorText(err)
		s.store.Dispatch(UploadFinished{}, NoticeSet{Text: text}, ErrorNote{Text: text})
		return upload.Result{Err: err}
	}
	return s.send(ctx)
}

// Select stages path in the widget without uploading, as for a file dropped
// into the terminal. Rejections are recorded the same way Upload records
// them.
func (s *Shell) Select(path string) (upload.File, error) {
	f, err := s.widget.Select(path)
	if err != nil && !errors.Is(err, upload.ErrBusy) {
		text := uploadErrorText(err)
		s.store.Dispatch(NoticeSet{Text: text}, ErrorNote{Text: text})
	}
	return f, err
}

// UploadSelected uploads the file the widget already holds, as after a
// failed attempt the user wants to retry.
func (s *Shell) UploadSelected(ctx context.Context) upload.Result {
	f, ok := s.widget.Selected()
	if !ok {
		return upload.Result{Err: upload.ErrNoFile}
	}
	if _, ok := s.store.begin(func(st State) bool { return !st.Uploading }, UploadStarted{Filename: f.Name}); !ok {
		return upload.Result{File: f, Err: ErrBusy}
	}
	return s.send(ctx)
}

// send runs the widget's upload once the Uploading slot is held.
func (s *Shell) send(ctx context.Context) upload.Result {
	f, _ := s.widget.Selected()
	log := s.logger().With("filename", f.Name, "size", f.Size)
	log.Info("upload started")

	res := s.widget.Upload(ctx, s.backend)
	if errors.Is(res.Err, upload.ErrBusy) {
		s.store.Dispatch(UploadFinished{})
		res.Err = ErrBusy
		return res
	}
	if res.Err != nil {
		log.Warn("upload failed", "error", res.Err)
		text := uploadErrorText(res.Err)
		actions := []Action{UploadFinished{}, ErrorNote{Text: text}}
		if api.IsValidation(res.Err) {
			actions = append(actions, NoticeSet{Text: text})
		}
		s.store.Dispatch(actions...)
		s.notifyUpload(res)
		return res
	}

	log.Info("upload finished", "id", res.Upload.ID, "chunks", res.Upload.ChunkCount)
	s.store.Dispatch(UploadFinished{}, SystemNote{Text: UploadSuccessText(res.Upload)})
	s.notifyUpload(res)
	_ = s.RefreshDocuments(ctx)
	return res
}

func (s *Shell) notifyUpload(res upload.Result) {
	if s.onUpload != nil {
		s.onUpload(res)
	}
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// RefreshDocuments replaces the document list with the backend's. A failure
// leaves the old list and sets the notice.
func (s *Shell) RefreshDocuments(ctx context.Context) error {
	docs, err := s.backend.ListDocuments(ctx)
	if err != nil {
		s.logger().Warn("document list failed", "error", err)
		s.store.Dispatch(NoticeSet{Text: "Could not load documents: " + api.UserMessage(err, api.MsgGenericServer)})
		return err
	}
	s.store.Dispatch(DocumentsLoaded{Documents: docs})
	return nil
}

// DeleteDocument removes a document and refreshes the list.
func (s *Shell) DeleteDocument(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		err := api.NewValidationError("id", "Document id is required")
		s.store.Dispatch(NoticeSet{Text: err.Message})
		return err
	}
	if err := s.backend.DeleteDocument(ctx, id); err != nil {
		s.store.Dispatch(ErrorNote{Text: api.UserMessage(err, "Delete failed. Please try again.")})
		return err
	}
	s.store.Dispatch(SystemNote{Text: fmt.Sprintf("Removed %s", id)})
	return s.RefreshDocuments(ctx)
}

// Search queries the backend's index directly. Results are returned, not
// recorded.
func (s *Shell) Search(ctx context.Context, query string, topK int) ([]api.SearchResult, error) {
	return s.backend.SearchDocuments(ctx, query, topK)
}

// Stats returns the backend's index statistics.
func (s *Shell) Stats(ctx context.Context) (*api.Stats, error) {
	return s.backend.DocumentStats(ctx)
}

// SetUseDocuments toggles retrieval over uploaded documents.
func (s *Shell) SetUseDocuments(on bool) {
	s.store.Dispatch(DocumentsToggled{On: on})
}

// =============================================================================
// SESSION
// =============================================================================

// ClearChat empties the transcript. The document list and the backend's
// conversation memory are untouched.
func (s *Shell) ClearChat() {
	s.store.Dispatch(ChatCleared{})
}

// ResetSession clears the chat, asks the backend to forget the old session
// and moves to a fresh id. The local reset happens even if the backend call
// fails.
func (s *Shell) ResetSession(ctx context.Context) error {
	old := s.store.Snapshot()
	if old.Loading {
		return ErrBusy
	}

	err := s.backend.ClearSession(ctx, old.SessionID)
	s.store.Dispatch(SessionReset{SessionID: NewSessionID()})
	if err != nil {
		s.logger().Warn("session clear failed", "session", old.SessionID, "error", err)
		s.store.Dispatch(NoticeSet{Text: api.UserMessage(err, api.MsgGenericServer)})
	}
	return err
}
