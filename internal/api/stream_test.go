// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/driveq/internal/api/apitest"
)

// =============================================================================
// SSE READER
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := ": keep-alive\n" +
		"data: hello\n\n" +
		"data:  leading space kept\n\n" +
		"event: error\ndata: boom\n\n" +
		"data: line one\ndata: line two\r\n\r\n" +
		"id: 7\nretry: 100\n\n" +
		"data: no trailing blank"

	r := NewSSEReader(strings.NewReader(input))
	want := []struct {
		event string
		data  string
	}{
		{"", "hello"},
		{"", " leading space kept"},
		{"error", "boom"},
		{"", "line one\nline two"},
		{"", "no trailing blank"},
	}
	for i, w := range want {
		ev, data, err := r.ReadEvent()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if ev != w.event || string(data) != w.data {
			t.Errorf("event %d = (%q, %q), want (%q, %q)", i, ev, data, w.event, w.data)
		}
	}
	if _, _, err := r.ReadEvent(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSSEReader_EventTooLarge(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	_, _, err := NewSSEReader(strings.NewReader(input)).ReadEvent()
	if err == nil {
		t.Fatal("expected size error")
	}
}

// =============================================================================
// STREAM MESSAGE
// =============================================================================

func TestStreamMessage_Collect(t *testing.T) {
	b := apitest.New(t)
	b.AddDocument("owner_manual.pdf", 10)
	b.SetStream([]string{"Every ", "30,000 ", "miles."}, "")

	c := NewClient(b.URL())
	s, err := c.StreamMessage(context.Background(), ChatRequest{Message: "spark plugs?", SessionID: "s1", UseDocuments: true})
	if err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}
	defer s.Close()

	reply, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if reply.Text != "Every 30,000 miles." {
		t.Errorf("Text = %q", reply.Text)
	}
	if len(reply.Sources) != 1 || reply.Sources[0] != "owner_manual.pdf" {
		t.Errorf("Sources = %v", reply.Sources)
	}
	if reply.SessionID != "s1" {
		t.Errorf("SessionID = %q", reply.SessionID)
	}

	chats := b.Chats()
	if len(chats) != 1 || !chats[0].UseDocuments || chats[0].SessionID != "s1" {
		t.Errorf("backend saw %+v", chats)
	}
}

func TestStreamMessage_EventOrder(t *testing.T) {
	b := apitest.New(t)
	b.SetStream([]string{"a", "b", "c"}, "")

	s, err := NewClient(b.URL()).StreamMessage(context.Background(), ChatRequest{Message: "q"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var kinds []string
	var text strings.Builder
	for ev := range s.Events() {
		kinds = append(kinds, ev.Kind.String())
		text.WriteString(ev.Text)
	}
	if got := strings.Join(kinds, ","); got != "chunk,chunk,chunk,done" {
		t.Errorf("kinds = %s", got)
	}
	if text.String() != "abc" {
		t.Errorf("text = %q", text.String())
	}
}

func TestStreamMessage_DefaultSession(t *testing.T) {
	b := apitest.New(t)
	s, err := NewClient(b.URL()).StreamMessage(context.Background(), ChatRequest{Message: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Collect(); err != nil {
		t.Fatal(err)
	}
	if got := b.Chats()[0].SessionID; got != "default" {
		t.Errorf("session_id = %q, want default", got)
	}
}

func TestStreamMessage_MidStreamErrorKeepsPartial(t *testing.T) {
	b := apitest.New(t)
	b.SetStream([]string{"The torque ", "spec is "}, "LLM timeout")

	s, err := NewClient(b.URL()).StreamMessage(context.Background(), ChatRequest{Message: "torque?"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Collect()

	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("expected StreamError, got %T: %v", err, err)
	}
	if se.Partial != "The torque spec is " {
		t.Errorf("Partial = %q", se.Partial)
	}
	if got := UserMessage(err, MsgChatFailed); got != "LLM timeout" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestStreamMessage_BadStatus(t *testing.T) {
	b := apitest.New(t)
	b.FailChat(http.StatusServiceUnavailable, "model warming up")

	_, err := NewClient(b.URL()).StreamMessage(context.Background(), ChatRequest{Message: "q"})
	se, ok := AsServer(err)
	if !ok {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if se.Status != 503 || se.Detail != "model warming up" {
		t.Errorf("got %+v", se)
	}
}

func TestStreamMessage_PlainTextAndJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: raw words\n\n")
		fmt.Fprint(w, `data: {"error":"quota exceeded"}`+"\n\n")
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL).StreamMessage(context.Background(), ChatRequest{Message: "q"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Collect()
	var se *StreamError
	if !errors.As(err, &se) || se.Partial != "raw words" {
		t.Fatalf("got %v", err)
	}
	if UserMessage(err, "") != "quota exceeded" {
		t.Errorf("UserMessage = %q", UserMessage(err, ""))
	}
}

func TestStreamMessage_EOFWithoutDoneFinishes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"token":"only"}`+"\n\n")
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL).StreamMessage(context.Background(), ChatRequest{Message: "q"})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := s.Collect()
	if err != nil || reply.Text != "only" {
		t.Errorf("got %+v, %v", reply, err)
	}
}

func TestStream_CloseStopsReader(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: first\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewClient(srv.URL).StreamMessage(context.Background(), ChatRequest{Message: "q"})
	if err != nil {
		t.Fatal(err)
	}
	ev := <-s.Events()
	if ev.Kind != EventChunk || ev.Text != "first" {
		t.Fatalf("first event = %+v", ev)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestStreamMessage_CanceledMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: Every\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := NewClient(srv.URL).StreamMessage(ctx, ChatRequest{Message: "q"})
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err = s.Collect()
	var se *StreamError
	if !errors.As(err, &se) || se.Partial != "Every" {
		t.Fatalf("expected StreamError with partial text, got %v", err)
	}
	if !IsNetwork(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected NetworkError wrapping context.Canceled, got %v", err)
	}
}

func TestStream_InterruptedWithoutCancel(t *testing.T) {
	s := &Stream{parent: context.Background()}
	err := s.Interrupted()
	if !IsNetwork(err) || !errors.Is(err, ErrStreamClosed) {
		t.Errorf("got %v", err)
	}
}

func TestStreamMessage_EmptyMessage(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").StreamMessage(context.Background(), ChatRequest{Message: ""})
	if !IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
