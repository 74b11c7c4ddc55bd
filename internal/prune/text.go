// Package prune clamps outgoing chat text to Telegram's message limits. A
// multi-match source reply can exceed the limit when an image is heavily
// reposted; replies are cut at a line boundary instead of being rejected by
// the API.
package prune

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLength is Telegram's hard limit for message text.
	MaxMessageLength = 4096

	marker = "…"
)

// Exceeds reports whether the text is over the message limit.
func Exceeds(s string) bool {
	return utf8.RuneCountInString(s) > MaxMessageLength
}

// Clamp returns the text unchanged when it fits, otherwise a prefix ending in
// an elision marker. The cut prefers the last full line inside the budget so
// a source list never ends mid-link.
func Clamp(s string) string {
	return ClampTo(s, MaxMessageLength)
}

// ClampTo clamps to an explicit rune budget.
func ClampTo(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	prefix := runePrefix(s, limit-utf8.RuneCountInString(marker))
	if idx := strings.LastIndex(prefix, "\n"); idx > 0 {
		prefix = prefix[:idx]
	}
	return prefix + marker
}

// runePrefix returns the first n runes without splitting a multi-byte rune.
func runePrefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
