// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is everything the client shows. Values are treated as immutable;
// Reduce always returns a fresh State.
type State struct {
	SessionID    string
	Messages     model.Transcript
	Documents    []api.DocumentInfo
	Loading      bool
	Uploading    bool
	Notice       string
	UseDocuments bool

	// streamID is the in-progress assistant message, if any.
	streamID string
}

// NewState returns an empty state. An empty id gets a fresh UUID.
func NewState(sessionID string) State {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return State{SessionID: sessionID, UseDocuments: true}
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Streaming reports whether an assistant message is still receiving text.
func (s State) Streaming() bool {
	return s.streamID != ""
}

// Clone returns a deep copy safe to hand across goroutines.
func (s State) Clone() State {
	out := s
	out.Messages = s.Messages.Clone()
	if s.Documents != nil {
		out.Documents = append([]api.DocumentInfo(nil), s.Documents...)
	}
	return out
}

// =============================================================================
// ACTIONS
// =============================================================================

// Action is a state transition request.
type Action interface {
	action()
}

// UserSubmitted appends the user's message and marks a request in flight.
type UserSubmitted struct{ Message model.Message }

// ReplyReceived appends the assistant's answer and clears Loading.
type ReplyReceived struct {
	Text      string
	Sources   []string
	SessionID string
}

// RequestFailed appends an error message and clears Loading.
type RequestFailed struct{ Text string }

// StreamStarted appends an empty in-progress assistant message.
type StreamStarted struct{ Message model.Message }

// StreamChunk grows the in-progress message.
type StreamChunk struct{ Text string }

// StreamFinished finalizes the in-progress message.
type StreamFinished struct {
	Sources   []string
	SessionID string
}

// StreamFailed turns the in-progress message into an error message.
type StreamFailed struct{ Reason string }

// SystemNote appends a system message.
type SystemNote struct{ Text string }

// ErrorNote appends an error message without touching Loading.
type ErrorNote struct{ Text string }

// DocumentsLoaded replaces the document list.
type DocumentsLoaded struct{ Documents []api.DocumentInfo }

// UploadStarted marks an upload in flight.
type UploadStarted struct{ Filename string }

// UploadFinished clears the upload flag.
type UploadFinished struct{}

// ChatCleared empties the transcript. Documents and session are kept.
type ChatCleared struct{}

// SessionReset empties the transcript and switches to a new session id.
type SessionReset struct{ SessionID string }

// NoticeSet replaces the inline notice; empty clears it.
type NoticeSet struct{ Text string }

// DocumentsToggled switches retrieval over uploaded documents on or off.
type DocumentsToggled struct{ On bool }

func (UserSubmitted) action()    {}
func (ReplyReceived) action()    {}
func (RequestFailed) action()    {}
func (StreamStarted) action()    {}
func (StreamChunk) action()      {}
func (StreamFinished) action()   {}
func (StreamFailed) action()     {}
func (SystemNote) action()       {}
func (ErrorNote) action()        {}
func (DocumentsLoaded) action()  {}
func (UploadStarted) action()    {}
func (UploadFinished) action()   {}
func (ChatCleared) action()      {}
func (SessionReset) action()     {}
func (NoticeSet) action()        {}
func (DocumentsToggled) action() {}

// =============================================================================
// REDUCER
// =============================================================================

// Reduce applies a to s. It has no side effects and never modifies s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case UserSubmitted:
		s.Messages = s.Messages.Append(a.Message)
		s.Loading = true
		s.Notice = ""

	case ReplyReceived:
		s.Messages = s.Messages.Append(model.NewAssistantMessage(a.Text, a.Sources))
		s.Loading = false
		if a.SessionID != "" {
			s.SessionID = a.SessionID
		}

	case RequestFailed:
		s.Messages = s.Messages.Append(model.NewErrorMessage(a.Text))
		s.Loading = false

	case StreamStarted:
		msg := a.Message
		msg.IsStreaming = true
		s.Messages = s.Messages.Append(msg)
		s.streamID = msg.ID
		s.Loading = true

	case StreamChunk:
		if i := s.Messages.IndexOf(s.streamID); i >= 0 && s.streamID != "" {
			s.Messages = s.Messages.Replace(s.Messages[i].WithChunk(a.Text))
		}

	case StreamFinished:
		if i := s.Messages.IndexOf(s.streamID); i >= 0 && s.streamID != "" {
			s.Messages = s.Messages.Replace(s.Messages[i].Finalize(a.Sources))
		}
		if a.SessionID != "" {
			s.SessionID = a.SessionID
		}
		s.streamID = ""
		s.Loading = false

	case StreamFailed:
		if i := s.Messages.IndexOf(s.streamID); i >= 0 && s.streamID != "" {
			s.Messages = s.Messages.Replace(s.Messages[i].Fail(a.Reason))
		} else {
			s.Messages = s.Messages.Append(model.NewErrorMessage(a.Reason))
		}
		s.streamID = ""
		s.Loading = false

	case SystemNote:
		s.Messages = s.Messages.Append(model.NewSystemMessage(a.Text))

	case ErrorNote:
		s.Messages = s.Messages.Append(model.NewErrorMessage(a.Text))

	case DocumentsLoaded:
		s.Documents = append([]api.DocumentInfo(nil), a.Documents...)

	case UploadStarted:
		s.Uploading = true
		s.Notice = ""

	case UploadFinished:
		s.Uploading = false

	case ChatCleared:
		s.Messages = nil
		s.Notice = ""

	case SessionReset:
		s.Messages = nil
		s.Notice = ""
		s.SessionID = a.SessionID
		if s.SessionID == "" {
			s.SessionID = NewSessionID()
		}

	case NoticeSet:
		s.Notice = a.Text

	case DocumentsToggled:
		s.UseDocuments = a.On
	}
	return s
}

// =============================================================================
// STORE
// =============================================================================

// Store serializes actions against one State and tells subscribers about
// changes. Notifications arrive in the order states were applied; a state
// overtaken by a newer one before delivery is skipped.
type Store struct {
	mu    sync.Mutex
	state State
	seq   uint64
	subs  map[int]func(State)
	next  int

	// notifyMu orders delivery. Subscribers run under it and must not
	// dispatch.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewStore wraps initial.
func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

// Dispatch applies actions in order and returns the resulting state.
// Subscribers run after the state lock is released.
func (s *Store) Dispatch(actions ...Action) State {
	st, _ := s.begin(func(State) bool { return true }, actions...)
	return st
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// begin atomically checks a guard and applies actions if it passes. It is
// how workflows claim the single in-flight slot.
func (s *Store) begin(guard func(State) bool, actions ...Action) (State, bool) {
	s.mu.Lock()
	if !guard(s.state) {
		s.mu.Unlock()
		return State{}, false
	}
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	s.seq++
	seq, st := s.seq, s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.notify(seq, st, subs)
	return st.Clone(), true
}

func (s *Store) notify(seq uint64, st State, subs []func(State)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	for _, fn := range subs {
		fn(st.Clone())
	}
}
