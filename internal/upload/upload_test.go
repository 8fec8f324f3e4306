// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/api/apitest"
)

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o600))
	return path
}

// countingUploader records calls and optionally blocks until released.
type countingUploader struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	err     error
}

func (u *countingUploader) UploadDocument(ctx context.Context, data []byte, filename, mimeType string) (*api.UploadResult, error) {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	if u.release != nil {
		<-u.release
	}
	if u.err != nil {
		return nil, u.err
	}
	return &api.UploadResult{ID: "doc_1", Filename: filename, CharCount: len(data), ChunkCount: 1}, nil
}

func (u *countingUploader) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// =============================================================================
// POLICY
// =============================================================================

func TestPolicyMessages(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, "Only PDF and DOCX files are supported", p.TypeMessage())
	assert.Equal(t, "File size must be less than 10MB", p.SizeMessage())

	p.AllowedTypes = append(p.AllowedTypes, MIMETXT)
	assert.Equal(t, "Only PDF, DOCX and TXT files are supported", p.TypeMessage())

	p.MaxBytes = 1536 * 1024
	assert.Equal(t, "File size must be less than 1.5MB", p.SizeMessage())
}

func TestPolicyAllowsName(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.AllowsName("/manuals/Civic.PDF"))
	assert.True(t, p.AllowsName("warranty.docx"))
	assert.False(t, p.AllowsName("notes.txt"))
	assert.False(t, p.AllowsName("~$draft"))
	assert.False(t, p.AllowsName("photo.png"))
}

func TestPolicyCheck(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name    string
		size    int64
		mime    string
		wantErr string
	}{
		{"pdf", 2 << 20, MIMEPDF, ""},
		{"docx", 100, MIMEDOCX, ""},
		{"legacy doc", 100, MIMEDOC, ""},
		{"exactly at limit", DefaultMaxBytes, MIMEPDF, ""},
		{"one byte over", DefaultMaxBytes + 1, MIMEPDF, "File size must be less than 10MB"},
		{"png", 100, "image/png", "Only PDF and DOCX files are supported"},
		{"text", 100, MIMETXT, "Only PDF and DOCX files are supported"},
		{"empty", 0, MIMEPDF, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check("f", tt.size, tt.mime)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, api.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetectMIME(t *testing.T) {
	dir := t.TempDir()

	pdf := filepath.Join(dir, "MANUAL.PDF")
	require.NoError(t, os.WriteFile(pdf, []byte("whatever"), 0o600))
	assert.Equal(t, MIMEPDF, DetectMIME(pdf), "extension match is case-insensitive")

	sniffed := filepath.Join(dir, "manual")
	require.NoError(t, os.WriteFile(sniffed, []byte("%PDF-1.7\n..."), 0o600))
	assert.Equal(t, MIMEPDF, DetectMIME(sniffed))

	png := filepath.Join(dir, "photo")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))
	assert.Equal(t, "image/png", DetectMIME(png))
}

func TestCleanPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in, want string
	}{
		{"  /tmp/manual.pdf \n", "/tmp/manual.pdf"},
		{"'/tmp/owner manual.pdf'", "/tmp/owner manual.pdf"},
		{`"/tmp/owner manual.pdf"`, "/tmp/owner manual.pdf"},
		{`/tmp/owner\ manual.pdf`, "/tmp/owner manual.pdf"},
		{"file:///tmp/owner%20manual.pdf", "/tmp/owner manual.pdf"},
		{"~/manual.pdf", filepath.Join(home, "manual.pdf")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPath(tt.in), tt.in)
	}
}

func TestDisplayNameNFC(t *testing.T) {
	decomposed := "/tmp/Citroe\u0308n.pdf"
	assert.Equal(t, "Citro\u00ebn.pdf", DisplayName(decomposed))
}

func TestLooksLikePath(t *testing.T) {
	path := writeFile(t, "manual.pdf", 10)
	assert.True(t, LooksLikePath(path))
	assert.True(t, LooksLikePath("'"+path+"'"))
	assert.False(t, LooksLikePath("How often to change spark plugs?"))
	assert.False(t, LooksLikePath(path+"\n"+path))
	assert.False(t, LooksLikePath(filepath.Dir(path)))
}

// =============================================================================
// WIDGET
// =============================================================================

func TestWidget_SelectValid(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	assert.Equal(t, Idle, w.State())

	path := writeFile(t, "manual.pdf", 2<<20)
	f, err := w.Select(path)
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", f.Name)
	assert.Equal(t, MIMEPDF, f.MIMEType)
	assert.Equal(t, int64(2<<20), f.Size)
	assert.Equal(t, FileSelected, w.State())

	got, ok := w.Selected()
	assert.True(t, ok)
	assert.Equal(t, f, got)
}

func TestWidget_RejectedTypeNeverUploads(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	u := &countingUploader{}

	res := w.Submit(context.Background(), writeFile(t, "photo.png", 100), u)
	require.Error(t, res.Err)
	assert.Equal(t, "Only PDF and DOCX files are supported", api.UserMessage(res.Err, ""))
	assert.Zero(t, u.Calls())
	assert.Equal(t, Idle, w.State())
	_, ok := w.Selected()
	assert.False(t, ok)
}

func TestWidget_OversizeNeverUploads(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	u := &countingUploader{}

	res := w.Submit(context.Background(), writeFile(t, "manual.pdf", int(DefaultMaxBytes)+1), u)
	require.Error(t, res.Err)
	assert.Equal(t, "File size must be less than 10MB", api.UserMessage(res.Err, ""))
	assert.Zero(t, u.Calls())
	assert.Equal(t, Idle, w.State())
}

func TestWidget_RejectionClearsPreviousSelection(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	_, err := w.Select(writeFile(t, "manual.pdf", 10))
	require.NoError(t, err)

	_, err = w.Select(writeFile(t, "notes.png", 10))
	require.Error(t, err)
	assert.Equal(t, Idle, w.State())
}

func TestWidget_UploadSuccessReturnsToIdle(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	u := &countingUploader{}

	res := w.Submit(context.Background(), writeFile(t, "owner_manual.pdf", 1234), u)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, "doc_1", res.Document.ID)
	assert.Equal(t, "owner_manual.pdf", res.Document.Filename)
	assert.Equal(t, int64(1234), res.Document.SizeBytes)
	assert.Equal(t, 1234, res.Upload.CharCount)
	assert.Equal(t, 1, u.Calls())
	assert.Equal(t, Idle, w.State())
}

func TestWidget_FailureKeepsFileForRetry(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	u := &countingUploader{err: &api.NetworkError{Op: "upload", Err: errors.New("dial tcp: refused")}}

	res := w.Submit(context.Background(), writeFile(t, "manual.pdf", 10), u)
	require.Error(t, res.Err)
	assert.Equal(t, FileSelected, w.State())

	u.err = nil
	res = w.Upload(context.Background(), u)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, u.Calls())
	assert.Equal(t, Idle, w.State())
}

func TestWidget_BusyWhileUploading(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	u := &countingUploader{release: make(chan struct{})}
	_, err := w.Select(writeFile(t, "manual.pdf", 10))
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- w.Upload(context.Background(), u) }()

	require.Eventually(t, func() bool { return w.State() == Uploading }, time.Second, 5*time.Millisecond)

	second := w.Upload(context.Background(), u)
	assert.ErrorIs(t, second.Err, ErrBusy)
	_, err = w.Select(writeFile(t, "other.pdf", 10))
	assert.ErrorIs(t, err, ErrBusy)
	w.Reset()
	assert.Equal(t, Uploading, w.State(), "reset is ignored mid-upload")

	close(u.release)
	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, 1, u.Calls())
	assert.Equal(t, Idle, w.State())
}

func TestWidget_UploadWithoutSelection(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	res := w.Upload(context.Background(), &countingUploader{})
	assert.ErrorIs(t, res.Err, ErrNoFile)
}

func TestWidget_FileChangedAfterSelect(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	u := &countingUploader{}
	path := writeFile(t, "manual.pdf", 10)
	_, err := w.Select(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	res := w.Upload(context.Background(), u)
	require.Error(t, res.Err)
	assert.True(t, api.IsValidation(res.Err))
	assert.Zero(t, u.Calls())
	assert.Equal(t, FileSelected, w.State())
}

func TestWidget_HoverIsCosmetic(t *testing.T) {
	w := NewWidget(DefaultPolicy())
	w.SetHover(true)
	assert.True(t, w.Hovering())
	assert.Equal(t, Idle, w.State())

	_, err := w.Select(writeFile(t, "manual.pdf", 10))
	require.NoError(t, err)
	assert.False(t, w.Hovering(), "selecting clears the drop highlight")
}

func TestWidget_AgainstBackend(t *testing.T) {
	b := apitest.New(t)
	c := api.NewClient(b.URL()).WithTimeout(5 * time.Second)
	w := NewWidget(DefaultPolicy())

	res := w.Submit(context.Background(), writeFile(t, "owner_manual.pdf", 2500), c)
	require.NoError(t, res.Err)
	assert.Equal(t, "doc_owner_manual", res.Document.ID)
	assert.Equal(t, 3, res.Upload.ChunkCount)
	assert.Equal(t, []string{"owner_manual.pdf"}, b.Documents())
}

func TestWidget_BackendRejectionIsVerbatim(t *testing.T) {
	b := apitest.New(t)
	b.FailUpload(http.StatusBadRequest, "Could not extract text from PDF")
	c := api.NewClient(b.URL()).WithTimeout(5 * time.Second)
	w := NewWidget(DefaultPolicy())

	res := w.Submit(context.Background(), writeFile(t, "scan.pdf", 100), c)
	require.Error(t, res.Err)
	assert.Equal(t, "Could not extract text from PDF", api.UserMessage(res.Err, api.MsgUploadFailed))
	assert.Equal(t, FileSelected, w.State())
}
