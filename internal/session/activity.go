// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// ACTIVITY TRACKER
// =============================================================================

// Activity tracks when the transcript last changed and whether it has been
// saved since, so the TUI can autosave to history on a timer.
type Activity struct {
	mu sync.Mutex

	startTime    time.Time
	lastActivity time.Time

	autoSaveEnabled  bool
	autoSaveInterval time.Duration
	lastAutoSave     time.Time
	isDirty          bool
}

// ActivityConfig holds autosave settings.
type ActivityConfig struct {
	// AutoSaveEnabled enables automatic saving
	AutoSaveEnabled bool

	// AutoSaveInterval is how often to auto-save (default: 30 seconds)
	AutoSaveInterval time.Duration
}

// DefaultActivityConfig returns autosave every 30 seconds.
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		AutoSaveEnabled:  true,
		AutoSaveInterval: 30 * time.Second,
	}
}

// NewActivity creates a tracker starting now.
func NewActivity(cfg ActivityConfig) *Activity {
	now := time.Now()
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = DefaultActivityConfig().AutoSaveInterval
	}
	return &Activity{
		startTime:        now,
		lastActivity:     now,
		autoSaveEnabled:  cfg.AutoSaveEnabled,
		autoSaveInterval: cfg.AutoSaveInterval,
		lastAutoSave:     now,
	}
}

// StartTime returns when tracking began.
func (a *Activity) StartTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startTime
}

// IdleTime returns how long since last activity.
func (a *Activity) IdleTime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.lastActivity)
}

// Touch records a transcript change and marks it unsaved.
func (a *Activity) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastActivity = time.Now()
	a.isDirty = true
}

// MarkClean records a successful save.
func (a *Activity) MarkClean() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isDirty = false
	a.lastAutoSave = time.Now()
}

// IsDirty returns whether the transcript has unsaved changes.
func (a *Activity) IsDirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isDirty
}

// ShouldAutoSave returns true once the interval has passed with unsaved
// changes.
func (a *Activity) ShouldAutoSave() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.autoSaveEnabled || !a.isDirty {
		return false
	}
	return time.Since(a.lastAutoSave) >= a.autoSaveInterval
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check autosave.
type TickMsg struct {
	Time time.Time
}

// AutoSaveMsg asks the UI to persist the transcript.
type AutoSaveMsg struct{}

// TickCmd returns a command that ticks every interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick returns AutoSaveMsg when due, then keeps ticking.
func (a *Activity) HandleTick() tea.Cmd {
	next := TickCmd(time.Second)
	if !a.ShouldAutoSave() {
		return next
	}
	return tea.Batch(func() tea.Msg { return AutoSaveMsg{} }, next)
}
