// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/storage"
)

// FromTranscript wraps a live transcript so it can be exported without
// saving it first. A message still streaming is left out.
func FromTranscript(sessionID string, msgs model.Transcript) *storage.Conversation {
	settled := make(model.Transcript, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsStreaming {
			settled = append(settled, m)
		}
	}

	created := time.Now()
	if len(settled) > 0 && !settled[0].Timestamp.IsZero() {
		created = settled[0].Timestamp
	}
	return &storage.Conversation{
		Title:     settled.Title(),
		SessionID: sessionID,
		CreatedAt: created,
		UpdatedAt: time.Now(),
		Messages:  settled,
	}
}
