// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/logging"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/upload"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config controls a Watcher.
type Config struct {
	// Dir is the folder to watch.
	Dir string

	// Debounce is how long a file must be quiet before it is uploaded.
	Debounce time.Duration

	// UploadsPerMinute paces uploads. 0 means unlimited.
	UploadsPerMinute int

	// Policy is the local type and size check.
	Policy upload.Policy

	// Recursive also watches subdirectories, including ones created later.
	Recursive bool

	// Initial uploads files already present when Start is called.
	Initial bool
}

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Ledger remembers which file contents were already uploaded.
// *storage.Store satisfies it.
type Ledger interface {
	LookupUpload(ctx context.Context, hash string) (storage.UploadRecord, bool, error)
	RecordUpload(ctx context.Context, rec storage.UploadRecord) error
}

// =============================================================================
// EVENTS
// =============================================================================

// Outcome is what happened to one file.
type Outcome int

const (
	Uploaded  Outcome = iota // accepted by the backend
	Duplicate                // same content uploaded before
	Rejected                 // failed the local policy check
	Failed                   // upload or hashing error
)

func (o Outcome) String() string {
	switch o {
	case Uploaded:
		return "uploaded"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports the outcome for one file.
type Event struct {
	Path    string
	Outcome Outcome
	Result  *api.UploadResult     // set when Uploaded
	Prior   *storage.UploadRecord // set when Duplicate
	Err     error                 // set when Rejected or Failed
}

func (e Event) String() string {
	name := upload.DisplayName(e.Path)
	switch e.Outcome {
	case Uploaded:
		return fmt.Sprintf("✓ %s uploaded (%d characters, %d chunks)", name, e.Result.CharCount, e.Result.ChunkCount)
	case Duplicate:
		return fmt.Sprintf("= %s already uploaded as %s", name, e.Prior.DocumentID)
	case Rejected:
		return fmt.Sprintf("✗ %s skipped: %s", name, api.UserMessage(e.Err, "invalid file"))
	default:
		return fmt.Sprintf("✗ %s failed: %s", name, api.UserMessage(e.Err, "Upload failed. Please try again."))
	}
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher auto-uploads files written into a directory.
type Watcher struct {
	cfg      Config
	up       upload.Uploader
	ledger   Ledger
	limiter  *rate.Limiter
	log      *slog.Logger
	onEvent  func(Event)
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	pending  map[string]time.Time // path -> last change time
	inflight map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for cfg.Dir. ledger may be nil, which disables
// duplicate detection.
func New(cfg Config, up upload.Uploader, ledger Ledger) (*Watcher, error) {
	if up == nil {
		return nil, errors.New("watch: nil uploader")
	}
	dir := upload.CleanPath(cfg.Dir)
	if dir == "" {
		return nil, errors.New("watch: no directory given")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}
	cfg.Dir = dir
	if cfg.Policy.MaxBytes == 0 && len(cfg.Policy.AllowedTypes) == 0 {
		cfg.Policy = upload.DefaultPolicy()
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		cfg:      cfg,
		up:       up,
		ledger:   ledger,
		limiter:  newLimiter(cfg.UploadsPerMinute),
		debounce: debounce,
		pending:  make(map[string]time.Time),
		inflight: make(map[string]bool),
	}, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// WithLogger sets the logger. Defaults to logging.L().
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	w.log = l
	return w
}

// OnEvent registers fn to receive every Event. fn runs on the watcher's
// upload goroutine and should not block for long.
func (w *Watcher) OnEvent(fn func(Event)) {
	w.mu.Lock()
	w.onEvent = fn
	w.mu.Unlock()
}

// Dir is the watched directory.
func (w *Watcher) Dir() string { return w.cfg.Dir }

func (w *Watcher) logger() *slog.Logger {
	if w.log != nil {
		return w.log
	}
	return logging.L()
}

// Start begins watching. It returns once the directory is registered;
// events are processed until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addDir(w.cfg.Dir); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if w.cfg.Initial {
		w.queueExisting()
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.processPending(ctx)

	w.logger().Info("watching folder", "dir", w.cfg.Dir, "recursive", w.cfg.Recursive)
	return nil
}

// Close stops watching and waits for an upload in progress to finish.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.wg.Wait()
	return err
}

// addDir registers dir, and its subdirectories when recursive.
func (w *Watcher) addDir(dir string) error {
	if !w.cfg.Recursive {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			w.logger().Warn("cannot watch subdirectory", "dir", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) queueExisting() {
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.cfg.Dir && (!w.cfg.Recursive || ignored(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		w.enqueue(path)
		return nil
	}
	filepath.WalkDir(w.cfg.Dir, walk)
}

// ignored filters hidden entries and editor or download temp files.
func ignored(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}
	for _, suffix := range []string{".tmp", ".part", ".crdownload", ".download", "~"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			return true
		}
	}
	return false
}

// enqueue marks path as changed now. Files the policy would never accept
// by extension are dropped here so stray files make no noise.
func (w *Watcher) enqueue(path string) {
	name := filepath.Base(path)
	if ignored(name) || !w.cfg.Policy.AllowsName(name) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Create):
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.cfg.Recursive && !ignored(info.Name()) {
						if err := w.addDir(event.Name); err != nil {
							w.logger().Warn("cannot watch new directory", "dir", event.Name, "error", err)
						}
					}
					continue
				}
				w.enqueue(event.Name)
			case event.Has(fsnotify.Write):
				w.enqueue(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.mu.Lock()
				delete(w.pending, event.Name)
				w.mu.Unlock()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger().Warn("watcher error", "error", err)
		}
	}
}

// processPending uploads files whose last change is older than the
// debounce window, one at a time.
func (w *Watcher) processPending(ctx context.Context) {
	defer w.wg.Done()
	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.due(time.Now()) {
				if ctx.Err() != nil {
					return
				}
				w.emit(w.Process(ctx, path))
			}
		}
	}
}

func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) emit(ev Event) {
	w.mu.Lock()
	fn := w.onEvent
	w.mu.Unlock()

	log := w.logger()
	switch ev.Outcome {
	case Uploaded:
		log.Info("auto-upload succeeded", "file", ev.Path, "doc_id", ev.Result.ID)
	case Duplicate:
		log.Debug("auto-upload skipped duplicate", "file", ev.Path)
	default:
		log.Warn("auto-upload "+ev.Outcome.String(), "file", ev.Path, "error", ev.Err)
	}
	if fn != nil {
		fn(ev)
	}
}

// =============================================================================
// PROCESS
// =============================================================================

// Process validates, deduplicates and uploads one file, honoring the rate
// limit. It is what the watch loop runs for every settled file and may be
// called directly.
func (w *Watcher) Process(ctx context.Context, path string) Event {
	w.mu.Lock()
	if w.inflight[path] {
		w.mu.Unlock()
		return Event{Path: path, Outcome: Failed, Err: upload.ErrBusy}
	}
	w.inflight[path] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
	}()

	f, err := upload.Inspect(path, w.cfg.Policy)
	if err != nil {
		if api.IsValidation(err) {
			return Event{Path: path, Outcome: Rejected, Err: err}
		}
		return Event{Path: path, Outcome: Failed, Err: err}
	}

	data, err := f.Read()
	if err != nil {
		return Event{Path: path, Outcome: Failed, Err: err}
	}
	if err := w.cfg.Policy.Check(f.Name, int64(len(data)), f.MIMEType); err != nil {
		return Event{Path: path, Outcome: Rejected, Err: err}
	}
	hash := storage.HashBytes(data)

	if w.ledger != nil {
		prior, seen, err := w.ledger.LookupUpload(ctx, hash)
		if err != nil {
			w.logger().Warn("ledger lookup failed", "file", path, "error", err)
		} else if seen {
			return Event{Path: path, Outcome: Duplicate, Prior: &prior}
		}
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return Event{Path: path, Outcome: Failed, Err: err}
	}

	res, err := w.up.UploadDocument(ctx, data, f.Name, f.MIMEType)
	if err != nil {
		if api.IsValidation(err) {
			return Event{Path: path, Outcome: Rejected, Err: err}
		}
		return Event{Path: path, Outcome: Failed, Err: err}
	}

	if w.ledger != nil {
		rec := storage.UploadRecord{
			Hash:       hash,
			Path:       path,
			Filename:   f.Name,
			DocumentID: res.ID,
			SizeBytes:  int64(len(data)),
			CharCount:  res.CharCount,
			ChunkCount: res.ChunkCount,
			Source:     storage.SourceWatch,
		}
		if err := w.ledger.RecordUpload(ctx, rec); err != nil {
			w.logger().Warn("ledger record failed", "file", path, "error", err)
		}
	}
	return Event{Path: path, Outcome: Uploaded, Result: res}
}
