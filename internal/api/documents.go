// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 5

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// UploadDocument sends one file for ingestion as multipart field "file".
// Type and size policy is enforced by the caller; the backend may still
// reject the document, which surfaces as a *ValidationError.
func (c *Client) UploadDocument(ctx context.Context, data []byte, filename, mimeType string) (*UploadResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, NewValidationError("file", "A filename is required")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/documents/upload", nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(opUpload, req)
	if err != nil {
		return nil, err
	}
	res, err := normalizeUpload(body)
	if err != nil {
		return nil, err
	}
	if res.Filename == "" {
		res.Filename = filename
		if res.ID == "" {
			res.ID = filename
		}
	}
	return res, nil
}

// ListDocuments returns the backend's current document list.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/documents/list", nil, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(opList, req)
	if err != nil {
		return nil, err
	}
	return normalizeDocuments(body)
}

// DeleteDocument removes a document. The backend keys documents by filename.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("document", "Document ID is required")
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	_, err = c.do(opDelete, req)
	return err
}

// SearchDocuments runs a retrieval query without generating an answer.
func (c *Client) SearchDocuments(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewValidationError("query", "Search query cannot be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("top_k", strconv.Itoa(topK))

	req, err := c.newRequest(ctx, http.MethodGet, "/api/documents/search", q, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(opSearch, req)
	if err != nil {
		return nil, err
	}
	return normalizeSearch(body)
}

// DocumentStats returns aggregate counters for the document store.
func (c *Client) DocumentStats(ctx context.Context) (*Stats, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/documents/stats", nil, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(opStats, req)
	if err != nil {
		return nil, err
	}
	return normalizeStats(body)
}
