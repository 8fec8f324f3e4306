// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
)

// JSONResponse is the envelope every --json command prints.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data is the command-specific payload
	Data any `json:"data"`

	// Error is the user-facing error text, null on success
	Error *string `json:"error"`

	// Kind classifies a failure: validation, network, server or error
	Kind string `json:"kind,omitempty"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	// Command is the command that produced the response
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response from err.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := userText(err)
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Kind:      errorKind(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

func errorKind(err error) string {
	switch ExitCode(err) {
	case ExitValidationError:
		return "validation"
	case ExitNetworkError:
		return "network"
	case ExitServerError:
		return "server"
	default:
		return "error"
	}
}

// Write prints the response to w, syntax-highlighted when w is a color
// terminal.
func (r *JSONResponse) Write(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if isTerminalWriter(w) && ColorsEnabled() {
		if err := quick.Highlight(w, string(data)+"\n", "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// outputJSON runs handler and prints its result, or its error, as a
// JSONResponse. A failure is returned as a SilentError so the exit code is
// kept without printing the message twice.
func outputJSON(w io.Writer, command string, handler func() (any, error)) error {
	data, err := handler()
	if err != nil {
		if werr := NewJSONErrorResponse(command, err).Write(w); werr != nil {
			return werr
		}
		return &SilentError{Err: err}
	}
	return NewJSONResponse(command, data).Write(w)
}
