// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ValidateMessage rejects blank chat input before it reaches the network.
func ValidateMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "message", Message: "Message cannot be empty", Err: ErrEmptyMessage}
	}
	return nil
}

// SendMessage asks the backend a question and waits for the full answer.
func (c *Client) SendMessage(ctx context.Context, in ChatRequest) (*ChatReply, error) {
	if err := ValidateMessage(in.Message); err != nil {
		return nil, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/chat/message", in)
	if err != nil {
		return nil, err
	}
	body, err := c.do(opChat, req)
	if err != nil {
		return nil, err
	}

	reply, err := normalizeChat(body)
	if err != nil {
		return nil, err
	}
	if reply.SessionID == "" {
		reply.SessionID = in.SessionID
	}
	return reply, nil
}

// ClearSession drops the backend's conversation history for id.
func (c *Client) ClearSession(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("session_id", "Session ID is required")
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/chat/session/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	_, err = c.do(opClearSession, req)
	return err
}

// ListSessions returns the session ids the backend currently holds.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat/sessions", nil, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(opSessions, req)
	if err != nil {
		return nil, err
	}
	return normalizeSessions(body)
}
