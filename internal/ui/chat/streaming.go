// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driveq/internal/session"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer coalesces store snapshots into frames. The store notifies
// on every streamed chunk; the buffer keeps only the latest snapshot and
// releases it when either batchSize updates have piled up or a frame
// interval has passed since the last release.
//
// Write is called from workflow goroutines; Flush from the Bubble Tea loop.
type StreamingBuffer struct {
	mu        sync.Mutex
	latest    session.State
	pending   int
	lastFlush time.Time

	batchSize   int
	maxFPS      int
	minInterval time.Duration
}

// NewStreamingBuffer returns a buffer releasing at most 30 frames per second
// or every 15 updates.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(15, 30)
}

// NewStreamingBufferWithConfig returns a buffer with custom thresholds.
// Out-of-range values fall back to the defaults.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &StreamingBuffer{
		batchSize:   batchSize,
		maxFPS:      maxFPS,
		minInterval: time.Second / time.Duration(maxFPS),
		lastFlush:   time.Now(),
	}
}

// Write records a new snapshot, replacing any unreleased one.
func (sb *StreamingBuffer) Write(s session.State) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.latest = s
	sb.pending++
}

// Flush returns the latest snapshot if a frame is due.
func (sb *StreamingBuffer) Flush() (session.State, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if !sb.dueLocked() {
		return session.State{}, false
	}
	return sb.releaseLocked(), true
}

// ForceFlush returns the latest unreleased snapshot regardless of timing.
func (sb *StreamingBuffer) ForceFlush() (session.State, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.pending == 0 {
		return session.State{}, false
	}
	return sb.releaseLocked(), true
}

func (sb *StreamingBuffer) dueLocked() bool {
	if sb.pending == 0 {
		return false
	}
	return sb.pending >= sb.batchSize || time.Since(sb.lastFlush) >= sb.minInterval
}

func (sb *StreamingBuffer) releaseLocked() session.State {
	s := sb.latest
	sb.latest = session.State{}
	sb.pending = 0
	sb.lastFlush = time.Now()
	return s
}

// Pending is the number of updates since the last release.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.pending
}

// Interval is the minimum time between frames.
func (sb *StreamingBuffer) Interval() time.Duration {
	return sb.minInterval
}

// Reset drops any unreleased snapshot.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.latest = session.State{}
	sb.pending = 0
	sb.lastFlush = time.Now()
}

// StreamTickMsg releases a held snapshot once its frame interval is over.
type StreamTickMsg struct{}

func streamTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return StreamTickMsg{} })
}
