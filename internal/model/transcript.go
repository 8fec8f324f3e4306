// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Transcript is the ordered message sequence of one chat. Methods never
// modify the receiver's backing array; they return a new Transcript.
type Transcript []Message

// Append returns t with msgs added at the end.
func (t Transcript) Append(msgs ...Message) Transcript {
	out := make(Transcript, len(t), len(t)+len(msgs))
	copy(out, t)
	return append(out, msgs...)
}

// Replace returns t with the message whose ID matches msg.ID swapped for msg.
// Unknown IDs leave t unchanged.
func (t Transcript) Replace(msg Message) Transcript {
	i := t.IndexOf(msg.ID)
	if i < 0 {
		return t
	}
	out := t.Clone()
	out[i] = msg
	return out
}

// Clone returns a copy that shares nothing mutable with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		m.Sources = cloneSources(m.Sources)
		out[i] = m
	}
	return out
}

// IndexOf returns the position of the message with id, or -1.
func (t Transcript) IndexOf(id string) int {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].ID == id {
			return i
		}
	}
	return -1
}

// Last returns the newest message, or the zero Message when empty.
func (t Transcript) Last() Message {
	if len(t) == 0 {
		return Message{}
	}
	return t[len(t)-1]
}

// Count returns how many messages have role.
func (t Transcript) Count(role Role) int {
	n := 0
	for _, m := range t {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Title derives a short label from the first user message.
func (t Transcript) Title() string {
	for _, m := range t {
		if m.Role == RoleUser && !m.IsEmpty() {
			return m.Preview(50)
		}
	}
	return "Untitled chat"
}
