// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// File is a validated local file ready for upload.
type File struct {
	Path     string
	Name     string
	Size     int64
	MIMEType string
}

// Inspect stats path, detects its type and applies p. Validation failures
// are *api.ValidationError; filesystem failures are plain errors.
func Inspect(path string, p Policy) (File, error) {
	path = CleanPath(path)
	if path == "" {
		return File{}, ErrNoFile
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	f := File{
		Path:     path,
		Name:     DisplayName(path),
		Size:     info.Size(),
		MIMEType: DetectMIME(path),
	}
	if err := p.Check(f.Name, f.Size, f.MIMEType); err != nil {
		return File{}, err
	}
	return f, nil
}

// Read loads the file's bytes. The file may have changed since Inspect, so
// the size ceiling is enforced again by the caller via Policy.Check.
func (f File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// DisplayName is the NFC-normalized base name sent to the backend. macOS
// hands out decomposed names; the backend keys documents by filename, so
// both forms must map to one.
func DisplayName(path string) string {
	return norm.NFC.String(filepath.Base(path))
}

// CleanPath undoes what terminals do to a dragged-in file: surrounding
// quotes, backslash-escaped spaces, file:// URLs and a leading ~.
func CleanPath(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			s = s[1 : len(s)-1]
		}
	}
	if strings.HasPrefix(s, "file://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Path
		}
	}
	if !strings.Contains(s, `\\`) {
		s = strings.ReplaceAll(s, `\ `, " ")
	}
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}

// LooksLikePath reports whether pasted text is plausibly a single dropped
// file: one line, and an existing regular file once cleaned.
func LooksLikePath(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "\n\r") {
		return false
	}
	info, err := os.Stat(CleanPath(s))
	return err == nil && info.Mode().IsRegular()
}
