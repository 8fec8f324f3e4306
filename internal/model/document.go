// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/dustin/go-humanize"
)

// UploadedDocument is the client's record of a file the backend accepted.
// The backend's document list is authoritative; this is a best-effort mirror.
type UploadedDocument struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

// NewUploadedDocument stamps a freshly uploaded document with the current time.
func NewUploadedDocument(id, filename string, size int64) UploadedDocument {
	if id == "" {
		id = filename
	}
	return UploadedDocument{
		ID:         id,
		Filename:   filename,
		UploadedAt: time.Now(),
		SizeBytes:  size,
	}
}

// HumanSize renders the size as "2.1 MB", or "" when unknown.
func (d UploadedDocument) HumanSize() string {
	return FormatSize(d.SizeBytes)
}

// Age renders the upload time relative to now ("3 minutes ago").
func (d UploadedDocument) Age() string {
	if d.UploadedAt.IsZero() {
		return ""
	}
	return humanize.Time(d.UploadedAt)
}

// FormatSize renders a byte count in SI units, or "" for unknown sizes.
func FormatSize(n int64) string {
	if n <= 0 {
		return ""
	}
	return humanize.Bytes(uint64(n))
}
