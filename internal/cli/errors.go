// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError covers everything without a more specific code
	ExitGeneralError = 1
	// ExitValidationError is bad input: usage, a rejected file, an empty question
	ExitValidationError = 2
	// ExitNetworkError means the backend could not be reached
	ExitNetworkError = 3
	// ExitServerError means the backend answered with an error status
	ExitServerError = 4
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is invalid command usage: unknown flags, wrong argument count,
// bad settings.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// NotFoundError is a named local resource that does not exist.
type NotFoundError struct {
	Resource string // e.g. "document", "conversation"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// SilentError carries an exit code for a failure already reported to the
// user, so Execute prints nothing more.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }

func (e *SilentError) Unwrap() error { return e.Err }

// usageArgs wraps a cobra argument check so its failures exit as usage
// errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps an error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	if errors.As(err, &usage) || api.IsValidation(err) {
		return ExitValidationError
	}
	if api.IsNetwork(err) {
		return ExitNetworkError
	}
	if _, ok := api.AsServer(err); ok {
		return ExitServerError
	}
	return ExitGeneralError
}

// userText is the one-line description of err printed to stderr. Backend
// details are passed through verbatim.
func userText(err error) string {
	var usage *UsageError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &usage):
		return usage.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, storage.ErrNotFound):
		return err.Error()
	case api.IsValidation(err), api.IsNetwork(err):
		return api.UserMessage(err, "")
	}
	if _, ok := api.AsServer(err); ok {
		return api.UserMessage(err, "")
	}
	if api.IsStreamError(err) {
		return api.UserMessage(err, api.MsgChatFailed)
	}
	return err.Error()
}

// printError writes err to w unless it was already reported.
func printError(w io.Writer, err error) {
	var silent *SilentError
	if errors.As(err, &silent) {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), userText(err))

	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintln(w, MutedStyle.Render("Run 'driveq --help' for usage."))
	}
}
