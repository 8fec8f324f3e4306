// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest runs an in-process fake of the DriveQuery backend for
// tests. It speaks the same routes and shapes as the hosted service and
// counts calls per route so tests can assert on network traffic.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Route keys accepted by Calls.
const (
	RouteChat         = "POST /api/chat/message"
	RouteStream       = "GET /api/chat/message/stream"
	RouteClearSession = "DELETE /api/chat/session/{id}"
	RouteSessions     = "GET /api/chat/sessions"
	RouteUpload       = "POST /api/documents/upload"
	RouteList         = "GET /api/documents/list"
	RouteDelete       = "DELETE /api/documents/{id}"
	RouteSearch       = "GET /api/documents/search"
	RouteStats        = "GET /api/documents/stats"
	RouteHealth       = "GET /"
)

var allowedExt = map[string]bool{".pdf": true, ".docx": true, ".doc": true, ".txt": true}

// Document is a file held by the fake backend.
type Document struct {
	Filename   string
	Size       int64
	UploadedAt time.Time
}

// ChatCall records what a chat request carried.
type ChatCall struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
	UseDocuments bool   `json:"use_documents"`
}

type failure struct {
	status int
	body   string
}

// Backend is the fake server. The zero value is not usable; call New.
type Backend struct {
	mu        sync.Mutex
	server    *httptest.Server
	calls     map[string]int
	docs      map[string]Document
	sessions  map[string]bool
	chats     []ChatCall
	reply     map[string]any
	chatFail  *failure
	upFail    *failure
	listFail  *failure
	chunks    []string
	streamErr string
	chatDelay time.Duration
}

// New starts a backend and registers its shutdown with t.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		calls:    make(map[string]int),
		docs:     make(map[string]Document),
		sessions: make(map[string]bool),
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", b.handleHealth)
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/message", b.handleChat)
		r.Get("/message/stream", b.handleStream)
		r.Get("/sessions", b.handleSessions)
		r.Delete("/session/{id}", b.handleClearSession)
	})
	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/upload", b.handleUpload)
		r.Get("/list", b.handleList)
		r.Get("/search", b.handleSearch)
		r.Get("/stats", b.handleStats)
		r.Delete("/{id}", b.handleDelete)
	})
	return r
}

// URL is the base URL to hand to api.NewClient.
func (b *Backend) URL() string { return b.server.URL }

// Close stops the server early; New already registers it for cleanup.
func (b *Backend) Close() { b.server.Close() }

// Calls returns how many requests hit route.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// TotalCalls is the number of requests across every route.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// Chats returns the chat requests received, in order.
func (b *Backend) Chats() []ChatCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatCall(nil), b.chats...)
}

// SetReply fixes the JSON body returned by the chat endpoint.
func (b *Backend) SetReply(body map[string]any) {
	b.mu.Lock()
	b.reply = body
	b.mu.Unlock()
}

// SetAnswer is SetReply for the common {response, sources} shape.
func (b *Backend) SetAnswer(text string, sources ...string) {
	if sources == nil {
		sources = []string{}
	}
	b.SetReply(map[string]any{"response": text, "sources": sources})
}

// FailChat makes chat and stream requests fail with status and a JSON
// {"detail": detail} body. An empty detail sends "{}".
func (b *Backend) FailChat(status int, detail string) {
	b.mu.Lock()
	b.chatFail = newFailure(status, detail)
	b.mu.Unlock()
}

// FailUpload makes uploads fail the same way.
func (b *Backend) FailUpload(status int, detail string) {
	b.mu.Lock()
	b.upFail = newFailure(status, detail)
	b.mu.Unlock()
}

// FailList makes the document list fail the same way.
func (b *Backend) FailList(status int, detail string) {
	b.mu.Lock()
	b.listFail = newFailure(status, detail)
	b.mu.Unlock()
}

// SetStream fixes the chunks sent by the stream endpoint. A non-empty errMsg
// sends an error event after the chunks instead of [DONE].
func (b *Backend) SetStream(chunks []string, errMsg string) {
	b.mu.Lock()
	b.chunks = append([]string(nil), chunks...)
	b.streamErr = errMsg
	b.mu.Unlock()
}

// SetChatDelay holds every chat response for d.
func (b *Backend) SetChatDelay(d time.Duration) {
	b.mu.Lock()
	b.chatDelay = d
	b.mu.Unlock()
}

// AddDocument seeds the store.
func (b *Backend) AddDocument(name string, size int64) {
	b.mu.Lock()
	b.docs[name] = Document{Filename: name, Size: size, UploadedAt: time.Now().UTC()}
	b.mu.Unlock()
}

// Documents returns stored filenames sorted.
func (b *Backend) Documents() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedNamesLocked()
}

// HasSession reports whether the session has an active conversation.
func (b *Backend) HasSession(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[id]
}

func newFailure(status int, detail string) *failure {
	body := "{}"
	if detail != "" {
		data, _ := json.Marshal(map[string]string{"detail": detail})
		body = string(data)
	}
	return &failure{status: status, body: body}
}

func (b *Backend) hit(route string) {
	b.mu.Lock()
	b.calls[route]++
	b.mu.Unlock()
}

func (b *Backend) sortedNamesLocked() []string {
	names := make([]string, 0, len(b.docs))
	for n := range b.docs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, f *failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// =============================================================================
// HANDLERS
// =============================================================================

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteHealth)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteChat)

	var in ChatCall
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	b.chats = append(b.chats, in)
	fail, reply, delay := b.chatFail, b.reply, b.chatDelay
	sources := b.sortedNamesLocked()
	if in.SessionID != "" {
		b.sessions[in.SessionID] = true
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail != nil {
		writeFailure(w, fail)
		return
	}
	if strings.TrimSpace(in.Message) == "" {
		writeDetail(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if reply != nil {
		writeJSON(w, http.StatusOK, reply)
		return
	}
	if !in.UseDocuments {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "You asked: " + in.Message,
		"sources":    sources,
		"session_id": in.SessionID,
	})
}

func (b *Backend) handleStream(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteStream)

	msg := r.URL.Query().Get("message")
	sid := r.URL.Query().Get("session_id")

	b.mu.Lock()
	b.chats = append(b.chats, ChatCall{Message: msg, SessionID: sid, UseDocuments: r.URL.Query().Get("use_documents") == "true"})
	fail, chunks, streamErr := b.chatFail, b.chunks, b.streamErr
	sources := b.sortedNamesLocked()
	b.mu.Unlock()

	if fail != nil {
		writeFailure(w, fail)
		return
	}
	if chunks == nil {
		chunks = strings.SplitAfter("You asked: "+msg, " ")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for _, c := range chunks {
		data, _ := json.Marshal(map[string]string{"content": c})
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if streamErr != "" {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", streamErr)
		return
	}
	data, _ := json.Marshal(map[string]any{"sources": sources, "session_id": sid, "done": true})
	fmt.Fprintf(w, "data: %s\n\n", data)
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (b *Backend) handleSessions(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteSessions)
	b.mu.Lock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (b *Backend) handleClearSession(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteClearSession)
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	delete(b.sessions, id)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteUpload)

	b.mu.Lock()
	fail := b.upFail
	b.mu.Unlock()
	if fail != nil {
		writeFailure(w, fail)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt[ext] {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("File type %s not allowed", ext))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "read failed")
		return
	}

	b.mu.Lock()
	b.docs[header.Filename] = Document{Filename: header.Filename, Size: int64(len(data)), UploadedAt: time.Now().UTC()}
	b.mu.Unlock()

	chunks := len(data)/1000 + 1
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":      "doc_" + strings.TrimSuffix(header.Filename, ext),
		"filename":    header.Filename,
		"pages":       1,
		"chunks":      chunks,
		"total_chars": len(data),
	})
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteList)
	b.mu.Lock()
	fail := b.listFail
	names := b.sortedNamesLocked()
	b.mu.Unlock()
	if fail != nil {
		writeFailure(w, fail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": names, "total": len(names)})
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteDelete)
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	_, ok := b.docs[id]
	delete(b.docs, id)
	b.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Document %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleSearch(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteSearch)
	query := r.URL.Query().Get("query")
	b.mu.Lock()
	names := b.sortedNamesLocked()
	b.mu.Unlock()

	results := make([]map[string]any, 0, len(names))
	for i, n := range names {
		results = append(results, map[string]any{
			"filename": n,
			"content":  "excerpt matching " + query,
			"score":    1.0 / float64(i+1),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}

func (b *Backend) handleStats(w http.ResponseWriter, r *http.Request) {
	b.hit(RouteStats)
	b.mu.Lock()
	var chars int64
	for _, d := range b.docs {
		chars += d.Size
	}
	n := len(b.docs)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_documents": n,
		"total_chunks":    n * 3,
		"total_chars":     chars,
		"embedding_model": "fake-embed",
	})
}
