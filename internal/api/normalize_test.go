// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeChat(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantText    string
		wantSources []string
	}{
		{"response field", `{"response":"A","sources":["x.pdf"]}`, "A", []string{"x.pdf"}},
		{"message field", `{"message":"B","session_id":"s"}`, "B", []string{}},
		{"answer field", `{"answer":"C"}`, "C", []string{}},
		{"response wins over message", `{"response":"R","message":"M"}`, "R", []string{}},
		{"empty response kept", `{"response":"","message":"M"}`, "", []string{}},
		{"object sources", `{"response":"D","sources":[{"filename":"a.pdf"},{"source":"b.docx"},{"name":"c.doc"}]}`, "D", []string{"a.pdf", "b.docx", "c.doc"}},
		{"duplicate sources", `{"response":"E","sources":["a.pdf"," a.pdf ","","b.pdf"]}`, "E", []string{"a.pdf", "b.pdf"}},
		{"null sources", `{"response":"F","sources":null}`, "F", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeChat([]byte(tt.body))
			if err != nil {
				t.Fatalf("normalizeChat: %v", err)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if !reflect.DeepEqual(got.Sources, tt.wantSources) {
				t.Errorf("Sources = %#v, want %#v", got.Sources, tt.wantSources)
			}
		})
	}
}

func TestNormalizeUpload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want UploadResult
	}{
		{
			"documents api",
			`{"doc_id":"d1","filename":"m.pdf","pages":4,"chunks":12,"total_chars":9000}`,
			UploadResult{ID: "d1", Filename: "m.pdf", Pages: 4, ChunkCount: 12, CharCount: 9000},
		},
		{
			"schema document_id",
			`{"success":true,"document_id":"doc_123abc","filename":"h.pdf","pages":45,"message":"ok"}`,
			UploadResult{ID: "doc_123abc", Filename: "h.pdf", Pages: 45},
		},
		{
			"routes file_id",
			`{"success":true,"file_id":"f-9","filename":"n.docx","text_length":321,"message":"ok"}`,
			UploadResult{ID: "f-9", Filename: "n.docx", CharCount: 321},
		},
		{
			"no id falls back to filename",
			`{"filename":"only.pdf"}`,
			UploadResult{ID: "only.pdf", Filename: "only.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeUpload([]byte(tt.body))
			if err != nil {
				t.Fatalf("normalizeUpload: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestNormalizeDocuments(t *testing.T) {
	t.Run("filenames", func(t *testing.T) {
		docs, err := normalizeDocuments([]byte(`{"documents":["a.pdf","b.docx"],"total":2}`))
		if err != nil {
			t.Fatal(err)
		}
		want := []DocumentInfo{{ID: "a.pdf", Filename: "a.pdf"}, {ID: "b.docx", Filename: "b.docx"}}
		if !reflect.DeepEqual(docs, want) {
			t.Errorf("got %+v, want %+v", docs, want)
		}
	})

	t.Run("objects", func(t *testing.T) {
		body := `{"documents":[
			{"document_id":"d1","filename":"a.pdf","upload_date":"2024-03-01T10:00:00.123456","size":2048,"pages":3,"status":"processed"},
			{"id":"d2","filename":"b.pdf","size":10,"file_type":".pdf"}
		],"total":2}`
		docs, err := normalizeDocuments([]byte(body))
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 {
			t.Fatalf("len = %d", len(docs))
		}
		if docs[0].ID != "d1" || docs[0].SizeBytes != 2048 || docs[0].Pages != 3 || docs[0].Status != "processed" {
			t.Errorf("docs[0] = %+v", docs[0])
		}
		wantTime := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
		if !docs[0].UploadedAt.Equal(wantTime) {
			t.Errorf("UploadedAt = %v, want %v", docs[0].UploadedAt, wantTime)
		}
		if docs[1].ID != "d2" || !docs[1].UploadedAt.IsZero() {
			t.Errorf("docs[1] = %+v", docs[1])
		}
	})

	t.Run("bare array and count envelope", func(t *testing.T) {
		docs, err := normalizeDocuments([]byte(`["x.pdf"]`))
		if err != nil || len(docs) != 1 || docs[0].Filename != "x.pdf" {
			t.Errorf("bare array: %+v, %v", docs, err)
		}
		docs, err = normalizeDocuments([]byte(`{"count":0}`))
		if err != nil || len(docs) != 0 || docs == nil {
			t.Errorf("missing key: %#v, %v", docs, err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := normalizeDocuments([]byte(`{"documents":[42]}`)); err == nil {
			t.Error("expected error for numeric entry")
		}
	})
}

func TestNormalizeSearch(t *testing.T) {
	body := `{"results":[{"source":"a.pdf","text":"t1","similarity":0.9},{"document":"b.pdf","chunk":"t2"},"plain"]}`
	got, err := normalizeSearch([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	want := []SearchResult{
		{Source: "a.pdf", Content: "t1", Score: 0.9},
		{Source: "b.pdf", Content: "t2"},
		{Content: "plain"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeStats(t *testing.T) {
	got, err := normalizeStats([]byte(`{"document_count":3,"chunks":30,"total_characters":999,"index":"faiss"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalDocuments != 3 || got.TotalChunks != 30 || got.TotalChars != 999 {
		t.Errorf("counters = %+v", got)
	}
	if len(got.Extra) != 1 || got.Extra["index"] != "faiss" {
		t.Errorf("Extra = %#v", got.Extra)
	}
}

func TestNormalizeSessions(t *testing.T) {
	got, err := normalizeSessions([]byte(`{"sessions":["a",{"session_id":"b"},{"id":"c"},{}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"LLM timeout"}`, "LLM timeout"},
		{`{"detail":[{"msg":"field required"},{"msg":"value too long"}]}`, "field required; value too long"},
		{`{"error":"Invalid file format","detail":""}`, "Invalid file format"},
		{`{"message":"nope"}`, "nope"},
		{`not json`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		if got := extractDetail([]byte(tt.body)); got != tt.want {
			t.Errorf("extractDetail(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
