// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/model"
)

var (
	// ErrBusy is returned while an upload is in flight.
	ErrBusy = errors.New("an upload is already in progress")

	// ErrNoFile is returned when uploading with nothing selected.
	ErrNoFile = errors.New("no file selected")
)

// State is the widget's position in its lifecycle.
type State int

const (
	Idle State = iota
	FileSelected
	Uploading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileSelected:
		return "file selected"
	case Uploading:
		return "uploading"
	default:
		return "unknown"
	}
}

// Uploader is the slice of the API client the widget needs.
type Uploader interface {
	UploadDocument(ctx context.Context, data []byte, filename, mimeType string) (*api.UploadResult, error)
}

// Result is the single outcome of Upload: a document on success, Err on
// failure. Exactly one of the two is set.
type Result struct {
	File     File
	Document model.UploadedDocument
	Upload   *api.UploadResult
	Err      error
}

// OK reports success.
func (r Result) OK() bool { return r.Err == nil }

// Widget holds one file selection and uploads it. It is safe for concurrent
// use; the UI thread reads State while a command goroutine runs Upload.
type Widget struct {
	mu     sync.Mutex
	policy Policy
	state  State
	file   File
	hover  bool
}

// NewWidget returns an Idle widget enforcing p.
func NewWidget(p Policy) *Widget {
	return &Widget{policy: p}
}

// Policy returns the validation policy.
func (w *Widget) Policy() Policy {
	return w.policy
}

// State returns the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Selected returns the selected file, if any.
func (w *Widget) Selected() (File, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file, w.state != Idle
}

// SetHover toggles the drag-over highlight. It has no other effect.
func (w *Widget) SetHover(on bool) {
	w.mu.Lock()
	w.hover = on
	w.mu.Unlock()
}

// Hovering reports the drag-over highlight.
func (w *Widget) Hovering() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hover
}

// Select validates path and makes it the current file. A rejected file
// leaves the widget Idle with no selection.
func (w *Widget) Select(path string) (File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Uploading {
		return File{}, ErrBusy
	}
	w.hover = false

	f, err := Inspect(path, w.policy)
	if err != nil {
		w.state = Idle
		w.file = File{}
		return File{}, err
	}
	w.state = FileSelected
	w.file = f
	return f, nil
}

// Reset drops the selection unless an upload is running.
func (w *Widget) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Uploading {
		return
	}
	w.state = Idle
	w.file = File{}
}

// Upload sends the selected file. On success the widget returns to Idle; on
// failure it returns to FileSelected so the same file can be retried.
func (w *Widget) Upload(ctx context.Context, u Uploader) Result {
	w.mu.Lock()
	switch w.state {
	case Uploading:
		w.mu.Unlock()
		return Result{Err: ErrBusy}
	case Idle:
		w.mu.Unlock()
		return Result{Err: ErrNoFile}
	}
	f := w.file
	w.state = Uploading
	w.mu.Unlock()

	res := w.send(ctx, u, f)

	w.mu.Lock()
	if res.OK() {
		w.state = Idle
		w.file = File{}
	} else {
		w.state = FileSelected
	}
	w.mu.Unlock()
	return res
}

func (w *Widget) send(ctx context.Context, u Uploader, f File) Result {
	data, err := f.Read()
	if err != nil {
		return Result{File: f, Err: err}
	}
	if err := w.policy.Check(f.Name, int64(len(data)), f.MIMEType); err != nil {
		return Result{File: f, Err: err}
	}

	up, err := u.UploadDocument(ctx, data, f.Name, f.MIMEType)
	if err != nil {
		return Result{File: f, Err: err}
	}

	name := up.Filename
	if name == "" {
		name = f.Name
	}
	return Result{
		File:     f,
		Document: model.NewUploadedDocument(up.ID, name, int64(len(data))),
		Upload:   up,
	}
}

// Submit selects path and uploads it in one step, as the CLI does.
func (w *Widget) Submit(ctx context.Context, path string, u Uploader) Result {
	f, err := w.Select(path)
	if err != nil {
		return Result{File: f, Err: err}
	}
	return w.Upload(ctx, u)
}
