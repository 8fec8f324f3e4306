// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Upload sources recorded in the ledger.
const (
	SourceCLI   = "cli"
	SourceTUI   = "tui"
	SourceWatch = "watch"
)

// UploadRecord is one ledger row.
type UploadRecord struct {
	Hash       string    `json:"hash"`
	Path       string    `json:"path"`
	Filename   string    `json:"filename"`
	DocumentID string    `json:"document_id"`
	SizeBytes  int64     `json:"size_bytes"`
	CharCount  int       `json:"char_count"`
	ChunkCount int       `json:"chunk_count"`
	Source     string    `json:"source"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// HashFile returns the hex BLAKE2b-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex BLAKE2b-256 digest of data.
func HashBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RecordUpload stores rec, replacing any earlier row with the same hash.
func (s *Store) RecordUpload(ctx context.Context, rec UploadRecord) error {
	if rec.Hash == "" {
		return errors.New("upload record has no hash")
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO uploads
			(hash, path, filename, document_id, size_bytes, char_count, chunk_count, source, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Hash, rec.Path, rec.Filename, rec.DocumentID, rec.SizeBytes,
		rec.CharCount, rec.ChunkCount, rec.Source, rec.UploadedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// LookupUpload returns the ledger row for hash. ok is false when the
// content was never uploaded.
func (s *Store) LookupUpload(ctx context.Context, hash string) (rec UploadRecord, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return rec, false, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT hash, path, filename, document_id, size_bytes, char_count, chunk_count, source, uploaded_at
		FROM uploads WHERE hash = ?`, hash)
	rec, err = scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UploadRecord{}, false, nil
	}
	if err != nil {
		return UploadRecord{}, false, fmt.Errorf("lookup upload: %w", err)
	}
	return rec, true, nil
}

// ListUploads returns the newest ledger rows first. limit <= 0 returns all.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT hash, path, filename, document_id, size_bytes, char_count, chunk_count, source, uploaded_at
		FROM uploads ORDER BY uploaded_at DESC, hash LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []UploadRecord
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("list uploads: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ForgetDocument drops ledger rows pointing at a deleted backend document,
// so the same file can be uploaded again.
func (s *Store) ForgetDocument(ctx context.Context, documentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM uploads WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("forget document: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (UploadRecord, error) {
	var rec UploadRecord
	var ts int64
	err := row.Scan(&rec.Hash, &rec.Path, &rec.Filename, &rec.DocumentID, &rec.SizeBytes,
		&rec.CharCount, &rec.ChunkCount, &rec.Source, &ts)
	if err != nil {
		return UploadRecord{}, err
	}
	rec.UploadedAt = time.UnixMilli(ts)
	return rec, nil
}
