// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// AssistantName is how the backend is labeled in the transcript.
const AssistantName = "AutoQuery"

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleError:
		return true
	}
	return false
}

// DisplayName returns the label rendered above a message.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return AssistantName
	case RoleSystem:
		return "System"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// IsStreaming marks an assistant message still receiving chunks.
	// Never persisted.
	IsStreaming bool `json:"-"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a completed assistant message.
func NewAssistantMessage(content string, sources []string) Message {
	m := NewMessage(RoleAssistant, content)
	m.Sources = cloneSources(sources)
	return m
}

// NewStreamingMessage creates an empty assistant message awaiting chunks.
func NewStreamingMessage() Message {
	m := NewMessage(RoleAssistant, "")
	m.IsStreaming = true
	return m
}

// NewSystemMessage creates a system notice.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewErrorMessage creates an error entry.
func NewErrorMessage(content string) Message {
	return NewMessage(RoleError, content)
}

func cloneSources(src []string) []string {
	if len(src) == 0 {
		return nil
	}
	return append([]string(nil), src...)
}

// =============================================================================
// STREAMING TRANSITIONS
// =============================================================================

// WithChunk returns m with text appended. Only streaming messages grow.
func (m Message) WithChunk(text string) Message {
	if !m.IsStreaming {
		return m
	}
	m.Content += text
	return m
}

// Finalize ends streaming and attaches sources.
func (m Message) Finalize(sources []string) Message {
	if !m.IsStreaming {
		return m
	}
	m.IsStreaming = false
	m.Sources = cloneSources(sources)
	return m
}

// Fail ends streaming by turning m into an error message. Text already
// received is kept above the reason.
func (m Message) Fail(reason string) Message {
	partial := strings.TrimSpace(m.Content)
	m.Role = RoleError
	m.IsStreaming = false
	m.Sources = nil
	if partial != "" {
		m.Content = partial + "\n\n" + reason
	} else {
		m.Content = reason
	}
	return m
}

// =============================================================================
// DISPLAY HELPERS
// =============================================================================

// HasSources reports whether the message cites any document.
func (m Message) HasSources() bool {
	return len(m.Sources) > 0
}

// SourcesLine renders the citation list as "Sources: a, b", or "" if none.
func (m Message) SourcesLine() string {
	if !m.HasSources() {
		return ""
	}
	return "Sources: " + strings.Join(m.Sources, ", ")
}

// Preview returns at most maxLen runes of content on one line.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if maxLen <= 3 || len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty reports whether the message has no visible content.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}
