// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload validates manuals locally and drives a single upload
// through the Idle → FileSelected → Uploading state machine.
package upload

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/driveq/internal/api"
)

// MIME types the backend can ingest.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC  = "application/msword"
	MIMETXT  = "text/plain"
)

// DefaultMaxBytes is the upload ceiling (10 MiB).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

var extTypes = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".doc":  MIMEDOC,
	".txt":  MIMETXT,
}

var typeLabels = map[string]string{
	MIMEPDF:  "PDF",
	MIMEDOCX: "DOCX",
	MIMEDOC:  "DOCX",
	MIMETXT:  "TXT",
}

// Policy is the local allow-list and size ceiling.
type Policy struct {
	AllowedTypes []string
	MaxBytes     int64
}

// DefaultPolicy accepts PDF, DOCX and legacy DOC up to 10 MiB.
func DefaultPolicy() Policy {
	return Policy{
		AllowedTypes: []string{MIMEPDF, MIMEDOCX, MIMEDOC},
		MaxBytes:     DefaultMaxBytes,
	}
}

// Allows reports whether mimeType is on the allow-list.
func (p Policy) Allows(mimeType string) bool {
	for _, t := range p.AllowedTypes {
		if strings.EqualFold(t, mimeType) {
			return true
		}
	}
	return false
}

// AllowsName reports whether name's extension maps to an allowed type.
// Unknown extensions are not sniffed.
func (p Policy) AllowsName(name string) bool {
	t, ok := extTypes[strings.ToLower(filepath.Ext(name))]
	return ok && p.Allows(t)
}

// TypeMessage is the rejection text for a disallowed type.
func (p Policy) TypeMessage() string {
	var labels []string
	seen := map[string]bool{}
	for _, t := range p.AllowedTypes {
		l, ok := typeLabels[strings.ToLower(t)]
		if !ok {
			l = t
		}
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	switch len(labels) {
	case 0:
		return "No file types are accepted"
	case 1:
		return fmt.Sprintf("Only %s files are supported", labels[0])
	default:
		return fmt.Sprintf("Only %s and %s files are supported",
			strings.Join(labels[:len(labels)-1], ", "), labels[len(labels)-1])
	}
}

// SizeMessage is the rejection text for an oversized file.
func (p Policy) SizeMessage() string {
	const mib = 1024 * 1024
	if p.MaxBytes%mib == 0 {
		return fmt.Sprintf("File size must be less than %dMB", p.MaxBytes/mib)
	}
	return fmt.Sprintf("File size must be less than %.1fMB", float64(p.MaxBytes)/mib)
}

// Check validates metadata only; it never touches the network.
func (p Policy) Check(name string, size int64, mimeType string) error {
	if !p.Allows(mimeType) {
		return &api.ValidationError{Field: "file", Message: p.TypeMessage()}
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &api.ValidationError{Field: "file", Message: p.SizeMessage()}
	}
	if size == 0 {
		return &api.ValidationError{Field: "file", Message: fmt.Sprintf("%s is empty", name)}
	}
	return nil
}

// DetectMIME maps a known extension to its type and otherwise sniffs the
// first 512 bytes of the file.
func DetectMIME(path string) string {
	if t, ok := extTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}

	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	ct := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
