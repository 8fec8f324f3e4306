// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "time"

// =============================================================================
// REQUESTS
// =============================================================================

// ChatRequest is a single question sent to the backend.
type ChatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id,omitempty"`
	UseDocuments bool   `json:"use_documents"`
}

// =============================================================================
// NORMALIZED RESULTS
// =============================================================================
//
// Everything below is what callers see. The backend's field names have drifted
// between revisions (response/message, document_id/file_id, bare filename
// lists vs objects); normalize.go folds those variants into these shapes so
// nothing downstream branches on field presence.

// ChatReply is the backend's answer to a ChatRequest.
type ChatReply struct {
	Text      string
	Sources   []string
	SessionID string
}

// UploadResult describes a document the backend accepted.
// CharCount and ChunkCount are informational; the document list is the
// source of truth once processing finishes.
type UploadResult struct {
	ID         string
	Filename   string
	CharCount  int
	ChunkCount int
	Pages      int
}

// DocumentInfo is one entry of the backend's document list.
type DocumentInfo struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	SizeBytes  int64
	Pages      int
	Status     string
}

// SearchResult is one ranked hit from a document search.
type SearchResult struct {
	Source  string
	Content string
	Score   float64
}

// Stats holds the backend's aggregate document counters. Keys the client
// does not know about are preserved in Extra.
type Stats struct {
	TotalDocuments int
	TotalChunks    int
	TotalChars     int
	Extra          map[string]any
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

type chatResponseWire struct {
	Response  *string `json:"response"`
	Message   *string `json:"message"`
	Answer    *string `json:"answer"`
	Sources   []any   `json:"sources"`
	SessionID string  `json:"session_id"`
}

type uploadResponseWire struct {
	DocumentID string `json:"document_id"`
	DocID      string `json:"doc_id"`
	FileID     string `json:"file_id"`
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	TotalChars *int   `json:"total_chars"`
	TextLength *int   `json:"text_length"`
	Chunks     int    `json:"chunks"`
	Pages      int    `json:"pages"`
}

type documentWire struct {
	DocumentID string `json:"document_id"`
	FileID     string `json:"file_id"`
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UploadDate string `json:"upload_date"`
	UploadedAt string `json:"uploaded_at"`
	Size       int64  `json:"size"`
	Pages      int    `json:"pages"`
	Status     string `json:"status"`
}

type sessionsWire struct {
	Sessions []any `json:"sessions"`
}
