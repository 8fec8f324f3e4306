// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/driveq/internal/storage"
)

// JSONExporter exports conversations to JSON. Options only control
// whether per-message timestamps are written.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	ID         string        `json:"id,omitempty"`
	Title      string        `json:"title"`
	SessionID  string        `json:"session_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ExportedAt time.Time     `json:"exported_at"`
	Messages   []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Sources   []string   `json:"sources,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *storage.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, ErrEmpty
	}

	doc := jsonDocument{
		ID:         conv.ID,
		Title:      conv.Title,
		SessionID:  conv.SessionID,
		CreatedAt:  conv.CreatedAt,
		ExportedAt: time.Now(),
		Messages:   make([]jsonMessage, 0, len(conv.Messages)),
	}
	if doc.Title == "" {
		doc.Title = conv.Messages.Title()
	}
	for _, m := range conv.Messages {
		if m.IsStreaming {
			continue
		}
		jm := jsonMessage{
			ID:      m.ID,
			Role:    string(m.Role),
			Author:  m.Role.DisplayName(),
			Content: m.Content,
			Sources: m.Sources,
		}
		if e.options.IncludeTimestamps && !m.Timestamp.IsZero() {
			ts := m.Timestamp
			jm.Timestamp = &ts
		}
		doc.Messages = append(doc.Messages, jm)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
