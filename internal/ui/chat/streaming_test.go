// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveq/internal/session"
)

func TestStreamingBuffer_HoldsUntilBatchFull(t *testing.T) {
	sb := NewStreamingBufferWithConfig(3, 1)

	sb.Write(session.NewState("a"))
	sb.Write(session.NewState("b"))
	_, ok := sb.Flush()
	assert.False(t, ok, "two updates inside one frame are held")
	assert.Equal(t, 2, sb.Pending())

	sb.Write(session.NewState("c"))
	s, ok := sb.Flush()
	require.True(t, ok)
	assert.Equal(t, "c", s.SessionID, "only the latest snapshot is released")
	assert.Zero(t, sb.Pending())
}

func TestStreamingBuffer_ReleasesAfterInterval(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 60)

	sb.Write(session.NewState("a"))
	time.Sleep(sb.Interval() + 10*time.Millisecond)

	s, ok := sb.Flush()
	require.True(t, ok)
	assert.Equal(t, "a", s.SessionID)
}

func TestStreamingBuffer_EmptyNeverFlushes(t *testing.T) {
	sb := NewStreamingBuffer()
	time.Sleep(sb.Interval() + 10*time.Millisecond)

	_, ok := sb.Flush()
	assert.False(t, ok)
	_, ok = sb.ForceFlush()
	assert.False(t, ok)
}

func TestStreamingBuffer_ForceFlush(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 1)
	sb.Write(session.NewState("a"))

	s, ok := sb.ForceFlush()
	require.True(t, ok)
	assert.Equal(t, "a", s.SessionID)

	_, ok = sb.ForceFlush()
	assert.False(t, ok, "a released snapshot is not released twice")
}

func TestStreamingBuffer_Reset(t *testing.T) {
	sb := NewStreamingBufferWithConfig(1, 30)
	sb.Write(session.NewState("a"))
	sb.Reset()

	assert.Zero(t, sb.Pending())
	_, ok := sb.Flush()
	assert.False(t, ok)
}

func TestStreamingBuffer_ConfigFallback(t *testing.T) {
	tests := []struct {
		name      string
		batch     int
		fps       int
		wantBatch int
		wantFPS   int
	}{
		{"defaults", 0, 0, 15, 30},
		{"negative", -1, -5, 15, 30},
		{"too fast", 5, 240, 5, 30},
		{"custom", 8, 60, 8, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := NewStreamingBufferWithConfig(tt.batch, tt.fps)
			assert.Equal(t, tt.wantBatch, sb.batchSize)
			assert.Equal(t, tt.wantFPS, sb.maxFPS)
			assert.Equal(t, time.Second/time.Duration(tt.wantFPS), sb.Interval())
		})
	}
}

func TestCancelManager(t *testing.T) {
	var cm cancelManager
	assert.False(t, cm.cancel(), "nothing to cancel")

	first, _ := cm.begin()
	assert.True(t, cm.active())

	second, _ := cm.begin()
	assert.Error(t, first.Err(), "beginning again cancels the previous request")
	assert.NoError(t, second.Err())

	assert.True(t, cm.cancel())
	assert.Error(t, second.Err())
	assert.False(t, cm.active())
}
