// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging owns the process-wide structured logger.
//
// driveq spends most of its life inside a full-screen TUI, so records never go
// to stdout. The default sink is a file under the config directory; "stderr"
// is accepted for the one-shot CLI commands and "off" discards everything.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxLogSize is the size at which an existing log file is rotated on open.
const maxLogSize = 10 * 1024 * 1024

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	closer io.Closer
)

// Options selects the level and sink for Init.
type Options struct {
	// Level is one of debug, info, warn, error or off.
	Level string
	// File is a path, "stderr", or empty for no output.
	File string
}

// ParseLevel maps a level name onto slog. Unknown names fall back to info.
// The second return value is false when logging is switched off.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "disabled":
		return 0, false
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, true
	}
}

// Init replaces the global logger. Calling it again closes the previous sink.
func Init(opts Options) error {
	level, enabled := ParseLevel(opts.Level)

	var (
		w   io.Writer = io.Discard
		c   io.Closer
		err error
	)
	if enabled {
		switch strings.TrimSpace(opts.File) {
		case "":
		case "stderr":
			w = os.Stderr
		default:
			var f *os.File
			f, err = openSink(opts.File)
			if err == nil {
				w, c = f, f
			}
		}
	}

	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	mu.Lock()
	if closer != nil {
		closer.Close()
	}
	logger, closer = l, c
	mu.Unlock()

	return err
}

func openSink(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if fi, err := os.Stat(path); err == nil && fi.Size() > maxLogSize {
		_ = os.Rename(path, path+".1")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// L returns the current global logger. It is never nil.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Set installs l as the global logger; tests use it to capture output.
func Set(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Close flushes and closes the file sink, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return err
}
