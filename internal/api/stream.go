// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxEventSize bounds a single SSE event.
const MaxEventSize = 64 * 1024

// =============================================================================
// STREAM TYPES
// =============================================================================

// EventKind distinguishes stream events.
type EventKind int

const (
	// EventChunk carries the next piece of answer text.
	EventChunk EventKind = iota
	// EventDone is the terminal success event.
	EventDone
	// EventError is the terminal failure event.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is one item delivered by a Stream. Exactly one terminal event
// (EventDone or EventError) ends every stream that is not closed early.
type StreamEvent struct {
	Kind      EventKind
	Text      string
	Sources   []string
	SessionID string
	Err       error
}

// StreamError is a mid-stream failure. Partial holds the text received
// before it.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// streamPayload is the JSON form of a data line. Plain-text lines are
// treated as chunks.
type streamPayload struct {
	Content   *string `json:"content"`
	Token     *string `json:"token"`
	Delta     *string `json:"delta"`
	Sources   []any   `json:"sources"`
	SessionID string  `json:"session_id"`
	Done      bool    `json:"done"`
	Error     string  `json:"error"`
	Detail    string  `json:"detail"`
}

func (p *streamPayload) text() string {
	switch {
	case p.Content != nil:
		return *p.Content
	case p.Token != nil:
		return *p.Token
	case p.Delta != nil:
		return *p.Delta
	}
	return ""
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader wraps r.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the next event's type and data. Multiple data lines are
// joined with "\n". One space after "data:" is stripped, as the SSE format
// requires; any further whitespace is content. Returns io.EOF at the end.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var (
		eventType string
		dataLines [][]byte
		size      int
	)
	joined := func() []byte { return bytes.Join(dataLines, []byte("\n")) }

	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return eventType, joined(), nil
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line dispatches the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, joined(), nil
			}
			eventType = ""
			continue
		}

		switch {
		case line[0] == ':':
			// comment or keep-alive
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := line[len("data:"):]
			if len(data) > 0 && data[0] == ' ' {
				data = data[1:]
			}
			size += len(data)
			if size > MaxEventSize {
				return "", nil, fmt.Errorf("sse event exceeds %d bytes", MaxEventSize)
			}
			dataLines = append(dataLines, append([]byte(nil), data...))
		}
		// id: and retry: are ignored

		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return eventType, joined(), nil
			}
			return "", nil, err
		}
	}
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is an in-flight streamed answer.
type Stream struct {
	events chan StreamEvent
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Events delivers chunks followed by one terminal event, then closes.
func (s *Stream) Events() <-chan StreamEvent {
	return s.events
}

// Close abandons the stream and releases the connection. It is safe to call
// more than once and after the stream finished.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.cancel()
		// drain so the reader goroutine can exit
		go func() {
			for range s.events {
			}
		}()
		<-s.done
	})
}

// Collect consumes the whole stream into a reply. On failure it returns a
// *StreamError carrying whatever text arrived first.
func (s *Stream) Collect() (*ChatReply, error) {
	var (
		sb    strings.Builder
		reply ChatReply
	)
	for ev := range s.events {
		switch ev.Kind {
		case EventChunk:
			sb.WriteString(ev.Text)
		case EventDone:
			reply.Text = sb.String()
			reply.Sources = ev.Sources
			reply.SessionID = ev.SessionID
			if reply.Sources == nil {
				reply.Sources = []string{}
			}
			return &reply, nil
		case EventError:
			return nil, ev.Err
		}
	}
	return nil, &StreamError{Partial: sb.String(), Err: s.Interrupted()}
}

// Interrupted is the error for an event channel that closed without a
// terminal event. It is a *NetworkError wrapping the caller's context error
// when the context ended, else ErrStreamClosed.
func (s *Stream) Interrupted() error {
	cause := ErrStreamClosed
	if err := s.parent.Err(); err != nil {
		cause = err
	}
	return &NetworkError{Op: opStream, Err: cause}
}

// StreamMessage starts a streamed answer. Errors establishing the stream
// (bad status, no connection) are returned directly; later failures arrive
// as an EventError whose Err is a *StreamError.
func (c *Client) StreamMessage(ctx context.Context, in ChatRequest) (*Stream, error) {
	if err := ValidateMessage(in.Message); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("message", in.Message)
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = "default"
	}
	q.Set("session_id", sessionID)
	q.Set("use_documents", strconv.FormatBool(in.UseDocuments))

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat/message/stream", q, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	log := c.logger()
	start := time.Now()
	log.Debug("api stream open", "path", req.URL.Path)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, &NetworkError{Op: opStream, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		cancel()
		body, _ := readResponse(resp.Body, c.maxBody)
		return nil, handleErrorResponse(opStream, resp.StatusCode, body)
	}

	s := &Stream{
		events: make(chan StreamEvent, 16),
		parent: parent,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		defer cancel()
		defer resp.Body.Close()
		n := processStream(ctx, resp.Body, resp.StatusCode, sessionID, s.events)
		log.Debug("api stream closed", "chunks", n, "elapsed", time.Since(start))
	}()
	return s, nil
}

// processStream turns SSE events into StreamEvents until a terminal event.
// It returns the number of chunks delivered.
func processStream(ctx context.Context, body io.Reader, status int, sessionID string, out chan<- StreamEvent) int {
	reader := NewSSEReader(body)
	var (
		partial strings.Builder
		sources []string
		chunks  int
	)

	send := func(ev StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		send(StreamEvent{Kind: EventError, Err: &StreamError{Partial: partial.String(), Err: err}})
	}
	finish := func() {
		if sources == nil {
			sources = []string{}
		}
		send(StreamEvent{Kind: EventDone, Sources: sources, SessionID: sessionID})
	}

	for {
		eventType, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				finish()
				return chunks
			}
			if ctx.Err() != nil {
				return chunks
			}
			fail(&NetworkError{Op: opStream, Err: err})
			return chunks
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			finish()
			return chunks
		}

		if eventType == "error" {
			detail := extractDetail(data)
			if detail == "" {
				detail = string(data)
			}
			fail(&ServerError{Status: status, Detail: detail})
			return chunks
		}

		text := string(data)
		done := false
		if len(data) > 0 && data[0] == '{' {
			var p streamPayload
			if json.Unmarshal(data, &p) == nil {
				if msg := firstNonEmpty(p.Error, p.Detail); msg != "" {
					fail(&ServerError{Status: status, Detail: msg})
					return chunks
				}
				text = p.text()
				if len(p.Sources) > 0 {
					sources = normalizeSources(p.Sources)
				}
				if p.SessionID != "" {
					sessionID = p.SessionID
				}
				done = p.Done
			}
		}

		if text != "" {
			partial.WriteString(text)
			chunks++
			if !send(StreamEvent{Kind: EventChunk, Text: text}) {
				return chunks
			}
		}
		if done || eventType == "done" {
			finish()
			return chunks
		}
	}
}

// IsStreamError reports whether err came from a stream that failed midway.
func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}
