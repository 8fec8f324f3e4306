// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// User-facing fallbacks used when the backend gives no explanation.
const (
	MsgGenericServer  = "An error occurred"
	MsgNetwork        = "Network error. Please check your connection."
	MsgChatFailed     = "Failed to get response. Please try again."
	MsgUploadFailed   = "Upload failed. Please try again."
	MsgUnparseableDoc = "Unable to parse this file. Try uploading a PDF or DOCX of the manual."
)

// Sentinel errors.
var (
	// ErrEmptyMessage is wrapped by the ValidationError returned for blank chat input.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrStreamClosed is the cause when a stream ends without a terminal event.
	ErrStreamClosed = errors.New("stream closed")
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// ValidationError is a rejection of the request's content. Local checks
// (file type, file size, empty message) produce one before any network call;
// the backend produces one when it refuses an upload as unprocessable.
type ValidationError struct {
	Field   string
	Message string
	// Status is zero for local rejections.
	Status int
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Local reports whether the rejection happened without contacting the backend.
func (e *ValidationError) Local() bool { return e.Status == 0 }

// NetworkError means no response was received from the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-success response. Detail is the backend's own
// explanation and is shown to the user verbatim.
type ServerError struct {
	Status int
	Detail string
	// Err is set when a 2xx body could not be decoded.
	Err error
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server error (HTTP %d)", e.Status)
}

func (e *ServerError) Unwrap() error { return e.Err }

// NotFound reports a 404.
func (e *ServerError) NotFound() bool { return e.Status == http.StatusNotFound }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// NewValidationError builds a local validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNetwork reports whether err is, or wraps, a NetworkError.
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// AsServer returns the ServerError in err's chain, if any.
func AsServer(err error) (*ServerError, bool) {
	var s *ServerError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// UserMessage turns any error from this package into the text shown in the
// transcript. Server details win verbatim; network failures get the stock
// connectivity message; anything else uses fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	if s, ok := AsServer(err); ok {
		if s.Detail != "" {
			return s.Detail
		}
		return MsgGenericServer
	}
	if IsNetwork(err) {
		return MsgNetwork
	}
	if fallback == "" {
		return MsgGenericServer
	}
	return fallback
}

// =============================================================================
// RESPONSE DECODING
// =============================================================================

// errorBody covers the error shapes the backend emits: FastAPI's
// {"detail": "..."} or {"detail": [{"msg": ...}]}, plus {"error": ...}
// and {"message": ...}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// extractDetail pulls a human-readable explanation out of an error body.
func extractDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	if len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(eb.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}

// handleErrorResponse converts a non-2xx response into a typed error.
// Upload rejections that describe the document are validation errors.
func handleErrorResponse(op string, status int, body []byte) error {
	detail := extractDetail(body)

	if op == opUpload {
		switch status {
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge,
			http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
			msg := detail
			if msg == "" {
				msg = MsgUnparseableDoc
			}
			return &ValidationError{Field: "file", Message: msg, Status: status}
		}
	}

	return &ServerError{Status: status, Detail: detail}
}
