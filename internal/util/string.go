// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// TruncateRunes truncates s to maxRunes characters, ending in "..." when
// anything was cut.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= len(ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(ellipsis)]) + ellipsis
}

// TruncateWidth truncates s to maxWidth terminal columns. Wide characters
// count as two.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, ellipsis)
}

// MiddleTruncate shortens s to maxWidth columns by cutting out its middle,
// so "2019_civic_owner_manual.pdf" keeps its year and extension.
func MiddleTruncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis)+2 {
		return TruncateWidth(s, maxWidth)
	}

	budget := maxWidth - len(ellipsis)
	tailWidth := budget / 2
	headWidth := budget - tailWidth

	head := runewidth.Truncate(s, headWidth, "")
	runes := []rune(s)
	var tail []rune
	w := 0
	for i := len(runes) - 1; i >= 0; i-- {
		rw := runewidth.RuneWidth(runes[i])
		if w+rw > tailWidth {
			break
		}
		w += rw
		tail = append([]rune{runes[i]}, tail...)
	}
	return head + ellipsis + string(tail)
}

// JoinFit joins items with sep until maxWidth columns are used, then
// appends "+N more" for whatever did not fit. A maxWidth of 0 joins all.
func JoinFit(items []string, sep string, maxWidth int) string {
	if maxWidth <= 0 {
		return strings.Join(items, sep)
	}

	var b strings.Builder
	width := 0
	for i, item := range items {
		add := item
		if i > 0 {
			add = sep + item
		}
		aw := runewidth.StringWidth(add)
		if width+aw > maxWidth && i > 0 {
			b.WriteString(sep)
			b.WriteString("+")
			b.WriteString(strconv.Itoa(len(items) - i))
			b.WriteString(" more")
			return b.String()
		}
		b.WriteString(add)
		width += aw
	}
	return b.String()
}

// StringWidth returns the display width of s in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
