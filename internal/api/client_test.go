// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveq/internal/api/apitest"
)

func newTestClient(t *testing.T) (*Client, *apitest.Backend) {
	t.Helper()
	b := apitest.New(t)
	return NewClient(b.URL()).WithTimeout(5 * time.Second), b
}

// =============================================================================
// CHAT
// =============================================================================

func TestSendMessage_SparkPlugScenario(t *testing.T) {
	c, b := newTestClient(t)
	b.SetAnswer("Every 30,000 miles per the maintenance schedule.", "owner_manual.pdf")

	reply, err := c.SendMessage(context.Background(), ChatRequest{
		Message:      "How often to change spark plugs?",
		SessionID:    "sess-1",
		UseDocuments: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Every 30,000 miles per the maintenance schedule.", reply.Text)
	assert.Equal(t, []string{"owner_manual.pdf"}, reply.Sources)
	assert.Equal(t, "sess-1", reply.SessionID, "session id falls back to the request's")

	chats := b.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "How often to change spark plugs?", chats[0].Message)
	assert.True(t, chats[0].UseDocuments)
}

func TestSendMessage_MessageFieldVariant(t *testing.T) {
	c, b := newTestClient(t)
	b.SetReply(map[string]any{"message": "From the newer contract", "session_id": "srv-7"})

	reply, err := c.SendMessage(context.Background(), ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "From the newer contract", reply.Text)
	assert.Equal(t, "srv-7", reply.SessionID)
	assert.NotNil(t, reply.Sources, "absent sources normalize to an empty slice")
	assert.Empty(t, reply.Sources)
}

func TestSendMessage_EmptyNeverHitsNetwork(t *testing.T) {
	c, b := newTestClient(t)

	_, err := c.SendMessage(context.Background(), ChatRequest{Message: "   \n\t"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, ErrEmptyMessage))
	assert.Zero(t, b.TotalCalls())
}

func TestSendMessage_ServerDetailVerbatim(t *testing.T) {
	c, b := newTestClient(t)
	b.FailChat(http.StatusInternalServerError, "LLM timeout")

	_, err := c.SendMessage(context.Background(), ChatRequest{Message: "torque spec?"})
	require.Error(t, err)

	se, ok := AsServer(err)
	require.True(t, ok, "expected ServerError, got %T", err)
	assert.Equal(t, 500, se.Status)
	assert.Equal(t, "LLM timeout", se.Detail)
	assert.Equal(t, "LLM timeout", UserMessage(err, MsgChatFailed))
}

func TestSendMessage_ServerErrorWithoutDetail(t *testing.T) {
	c, b := newTestClient(t)
	b.FailChat(http.StatusBadGateway, "")

	_, err := c.SendMessage(context.Background(), ChatRequest{Message: "q"})
	require.Error(t, err)
	assert.Equal(t, MsgGenericServer, UserMessage(err, MsgChatFailed))
}

func TestSendMessage_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url).WithTimeout(2 * time.Second)
	_, err := c.SendMessage(context.Background(), ChatRequest{Message: "anyone there?"})
	require.Error(t, err)
	assert.True(t, IsNetwork(err), "expected NetworkError, got %T: %v", err, err)
	assert.Equal(t, MsgNetwork, UserMessage(err, MsgChatFailed))
}

func TestSendMessage_ContextCanceled(t *testing.T) {
	c, b := newTestClient(t)
	b.SetChatDelay(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.SendMessage(ctx, ChatRequest{Message: "slow"})
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSendMessage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SendMessage(context.Background(), ChatRequest{Message: "q"})
	require.Error(t, err)
	se, ok := AsServer(err)
	require.True(t, ok)
	assert.Empty(t, se.Detail)
	assert.Error(t, errors.Unwrap(se))
}

func TestSendMessage_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"` + strings.Repeat("x", 2048) + `"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithMaxResponseSize(1024)
	_, err := c.SendMessage(context.Background(), ChatRequest{Message: "q"})
	require.Error(t, err)
	_, ok := AsServer(err)
	assert.True(t, ok)
}

func TestSessions(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.SendMessage(ctx, ChatRequest{Message: "a", SessionID: "s1"})
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, ChatRequest{Message: "b", SessionID: "s2"})
	require.NoError(t, err)

	ids, err := c.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)

	require.NoError(t, c.ClearSession(ctx, "s1"))
	ids, err = c.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids)

	err = c.ClearSession(ctx, "")
	assert.True(t, IsValidation(err))
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestUploadDocument(t *testing.T) {
	c, b := newTestClient(t)

	res, err := c.UploadDocument(context.Background(), []byte(strings.Repeat("a", 2500)), "owner_manual.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "doc_owner_manual", res.ID)
	assert.Equal(t, "owner_manual.pdf", res.Filename)
	assert.Equal(t, 2500, res.CharCount)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, []string{"owner_manual.pdf"}, b.Documents())
}

func TestUploadDocument_ServerRejectsAsValidation(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.UploadDocument(context.Background(), []byte("MZ"), "setup.exe", "application/octet-stream")
	require.Error(t, err)

	var v *ValidationError
	require.True(t, errors.As(err, &v))
	assert.False(t, v.Local())
	assert.Equal(t, http.StatusBadRequest, v.Status)
	assert.Equal(t, "File type .exe not allowed", v.Message)
}

func TestUploadDocument_UnparseableFallback(t *testing.T) {
	c, b := newTestClient(t)
	b.FailUpload(http.StatusUnprocessableEntity, "")

	_, err := c.UploadDocument(context.Background(), []byte("%PDF"), "scan.pdf", "application/pdf")
	require.Error(t, err)
	assert.Equal(t, MsgUnparseableDoc, UserMessage(err, MsgUploadFailed))
}

func TestListDocuments(t *testing.T) {
	c, b := newTestClient(t)
	b.AddDocument("b.pdf", 10)
	b.AddDocument("a.docx", 20)

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.docx", docs[0].Filename)
	assert.Equal(t, "a.docx", docs[0].ID)
	assert.Equal(t, "b.pdf", docs[1].Filename)
}

func TestDeleteDocument(t *testing.T) {
	c, b := newTestClient(t)
	b.AddDocument("owner manual.pdf", 10)

	require.NoError(t, c.DeleteDocument(context.Background(), "owner manual.pdf"))
	assert.Empty(t, b.Documents())

	err := c.DeleteDocument(context.Background(), "owner manual.pdf")
	se, ok := AsServer(err)
	require.True(t, ok)
	assert.True(t, se.NotFound())
	assert.Equal(t, "Document owner manual.pdf not found", se.Detail)
}

func TestSearchDocuments(t *testing.T) {
	c, b := newTestClient(t)
	b.AddDocument("owner_manual.pdf", 10)

	results, err := c.SearchDocuments(context.Background(), "fuse box", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "owner_manual.pdf", results[0].Source)
	assert.Equal(t, "excerpt matching fuse box", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	_, err = c.SearchDocuments(context.Background(), " ", 3)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, b.Calls(apitest.RouteSearch))
}

func TestSearchDocuments_TopKDefault(t *testing.T) {
	var gotTopK string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTopK = r.URL.Query().Get("top_k")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SearchDocuments(context.Background(), "q", -1)
	require.NoError(t, err)
	assert.Equal(t, "5", gotTopK)
}

func TestDocumentStats(t *testing.T) {
	c, b := newTestClient(t)
	b.AddDocument("a.pdf", 100)
	b.AddDocument("b.pdf", 50)

	st, err := c.DocumentStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalDocuments)
	assert.Equal(t, 6, st.TotalChunks)
	assert.Equal(t, 150, st.TotalChars)
	assert.Equal(t, "fake-embed", st.Extra["embedding_model"])
	assert.NotContains(t, st.Extra, "total_documents")
}

func TestHealth(t *testing.T) {
	c, b := newTestClient(t)
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, 1, b.Calls(apitest.RouteHealth))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c = NewClient("http://localhost:8000/ ")
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}
