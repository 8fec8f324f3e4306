// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"
)

func TestDefaultActivityConfig(t *testing.T) {
	cfg := DefaultActivityConfig()
	if !cfg.AutoSaveEnabled {
		t.Error("Default AutoSaveEnabled should be true")
	}
	if cfg.AutoSaveInterval != 30*time.Second {
		t.Errorf("Default AutoSaveInterval = %v, want 30s", cfg.AutoSaveInterval)
	}
}

func TestActivity_DirtyTracking(t *testing.T) {
	a := NewActivity(DefaultActivityConfig())
	if a.IsDirty() {
		t.Error("new tracker should be clean")
	}
	if a.StartTime().IsZero() {
		t.Error("StartTime should not be zero")
	}

	a.Touch()
	if !a.IsDirty() {
		t.Error("Touch should mark dirty")
	}
	a.MarkClean()
	if a.IsDirty() {
		t.Error("MarkClean should clear dirty")
	}
}

func TestActivity_ShouldAutoSave(t *testing.T) {
	a := NewActivity(ActivityConfig{AutoSaveEnabled: true, AutoSaveInterval: 10 * time.Millisecond})

	if a.ShouldAutoSave() {
		t.Error("clean tracker should not autosave")
	}
	a.Touch()
	if a.ShouldAutoSave() {
		t.Error("should wait for the interval")
	}
	time.Sleep(20 * time.Millisecond)
	if !a.ShouldAutoSave() {
		t.Error("dirty tracker past the interval should autosave")
	}
	a.MarkClean()
	if a.ShouldAutoSave() {
		t.Error("saved tracker should not autosave")
	}
}

func TestActivity_Disabled(t *testing.T) {
	a := NewActivity(ActivityConfig{AutoSaveEnabled: false, AutoSaveInterval: time.Millisecond})
	a.Touch()
	time.Sleep(5 * time.Millisecond)
	if a.ShouldAutoSave() {
		t.Error("disabled autosave should never trigger")
	}
}

func TestActivity_IdleTime(t *testing.T) {
	a := NewActivity(DefaultActivityConfig())
	time.Sleep(5 * time.Millisecond)
	if a.IdleTime() < 5*time.Millisecond {
		t.Errorf("IdleTime = %v, want >= 5ms", a.IdleTime())
	}
	a.Touch()
	if a.IdleTime() > time.Second {
		t.Error("Touch should reset idle time")
	}
}

func TestActivity_HandleTickReturnsCmd(t *testing.T) {
	a := NewActivity(DefaultActivityConfig())
	if a.HandleTick() == nil {
		t.Error("HandleTick should always keep ticking")
	}
}
