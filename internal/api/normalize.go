// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// malformed wraps a decode failure of a successful response.
func malformed(op string, err error) error {
	return &ServerError{Status: http.StatusOK, Err: fmt.Errorf("decode %s response: %w", op, err)}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalizeChat(body []byte) (*ChatReply, error) {
	var w chatResponseWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, malformed(opChat, err)
	}

	reply := &ChatReply{SessionID: w.SessionID, Sources: normalizeSources(w.Sources)}
	switch {
	case w.Response != nil:
		reply.Text = *w.Response
	case w.Message != nil:
		reply.Text = *w.Message
	case w.Answer != nil:
		reply.Text = *w.Answer
	}
	return reply, nil
}

// normalizeSources accepts strings or objects naming a document and returns
// the labels in order with duplicates removed. Never returns nil.
func normalizeSources(raw []any) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, item := range raw {
		var label string
		switch v := item.(type) {
		case string:
			label = v
		case map[string]any:
			label = firstNonEmpty(stringField(v, "filename"), stringField(v, "source"), stringField(v, "name"))
		}
		label = strings.TrimSpace(label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func normalizeUpload(body []byte) (*UploadResult, error) {
	var w uploadResponseWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, malformed(opUpload, err)
	}
	res := &UploadResult{
		ID:         firstNonEmpty(w.DocumentID, w.DocID, w.FileID, w.ID),
		Filename:   w.Filename,
		ChunkCount: w.Chunks,
		Pages:      w.Pages,
	}
	switch {
	case w.TotalChars != nil:
		res.CharCount = *w.TotalChars
	case w.TextLength != nil:
		res.CharCount = *w.TextLength
	}
	if res.ID == "" {
		res.ID = res.Filename
	}
	return res, nil
}

// listItems accepts either a bare JSON array or an object holding the array
// under key.
func listItems(body []byte, key string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	var items []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &items)
		return items, err
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	err := json.Unmarshal(raw, &items)
	return items, err
}

func normalizeDocuments(body []byte) ([]DocumentInfo, error) {
	items, err := listItems(body, "documents")
	if err != nil {
		return nil, malformed(opList, err)
	}

	docs := make([]DocumentInfo, 0, len(items))
	for _, raw := range items {
		var name string
		if json.Unmarshal(raw, &name) == nil {
			docs = append(docs, DocumentInfo{ID: name, Filename: name})
			continue
		}
		var w documentWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, malformed(opList, err)
		}
		doc := DocumentInfo{
			ID:         firstNonEmpty(w.DocumentID, w.FileID, w.ID, w.Filename),
			Filename:   firstNonEmpty(w.Filename, w.DocumentID, w.FileID, w.ID),
			UploadedAt: parseTimestamp(firstNonEmpty(w.UploadDate, w.UploadedAt)),
			SizeBytes:  w.Size,
			Pages:      w.Pages,
			Status:     w.Status,
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp understands RFC 3339 and Python's isoformat without a zone,
// which is treated as UTC. Unparseable input yields the zero time.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func normalizeSearch(body []byte) ([]SearchResult, error) {
	items, err := listItems(body, "results")
	if err != nil {
		return nil, malformed(opSearch, err)
	}

	results := make([]SearchResult, 0, len(items))
	for _, raw := range items {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			var text string
			if json.Unmarshal(raw, &text) == nil {
				results = append(results, SearchResult{Content: text})
				continue
			}
			return nil, malformed(opSearch, err)
		}
		results = append(results, SearchResult{
			Source:  firstNonEmpty(stringField(obj, "filename"), stringField(obj, "source"), stringField(obj, "document")),
			Content: firstNonEmpty(stringField(obj, "content"), stringField(obj, "text"), stringField(obj, "chunk")),
			Score:   firstNumber(obj, "score", "similarity", "relevance"),
		})
	}
	return results, nil
}

func normalizeStats(body []byte) (*Stats, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(opStats, err)
	}

	st := &Stats{Extra: make(map[string]any)}
	lift := func(dst *int, keys ...string) {
		for _, k := range keys {
			if v, ok := raw[k].(float64); ok {
				*dst = int(v)
				for _, k := range keys {
					delete(raw, k)
				}
				return
			}
		}
	}
	lift(&st.TotalDocuments, "total_documents", "document_count", "documents")
	lift(&st.TotalChunks, "total_chunks", "chunk_count", "chunks")
	lift(&st.TotalChars, "total_chars", "total_characters", "characters")

	for k, v := range raw {
		st.Extra[k] = v
	}
	return st, nil
}

func normalizeSessions(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	var raw []any
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, malformed(opSessions, err)
		}
	} else {
		var w sessionsWire
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return nil, malformed(opSessions, err)
		}
		raw = w.Sessions
	}

	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case map[string]any:
			if id := firstNonEmpty(stringField(v, "session_id"), stringField(v, "id")); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return v
		}
	}
	return 0
}
