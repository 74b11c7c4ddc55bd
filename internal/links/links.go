// Package links extracts URLs from Telegram messages so the auto-source flow
// can avoid telling posters about links they already included.
package links

import (
	"regexp"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// Extract collects every URL present in the message, from rendered link
// entities and from plain text, keyed by normalized form.
func Extract(msg *tgbotapi.Message) map[string]struct{} {
	found := make(map[string]struct{})
	if msg == nil {
		return found
	}

	collect := func(text string, entities []tgbotapi.MessageEntity) {
		// Telegram entity offsets are UTF-16 code units.
		encoded := utf16.Encode([]rune(text))
		for _, entity := range entities {
			switch entity.Type {
			case "url":
				if entity.Offset < 0 || entity.Offset+entity.Length > len(encoded) {
					continue
				}
				raw := string(utf16.Decode(encoded[entity.Offset : entity.Offset+entity.Length]))
				found[Normalize(raw)] = struct{}{}
			case "text_link":
				if entity.URL != "" {
					found[Normalize(entity.URL)] = struct{}{}
				}
			}
		}
		for _, raw := range urlPattern.FindAllString(text, -1) {
			found[Normalize(raw)] = struct{}{}
		}
	}

	collect(msg.Text, msg.Entities)
	collect(msg.Caption, msg.CaptionEntities)
	return found
}

// ExtractRaw collects URLs from the message in order of appearance, without
// normalization, for callers that dispatch on the exact URL shape.
func ExtractRaw(msg *tgbotapi.Message) []string {
	if msg == nil {
		return nil
	}
	var found []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		if raw == "" {
			return
		}
		if _, ok := seen[raw]; ok {
			return
		}
		seen[raw] = struct{}{}
		found = append(found, raw)
	}

	collect := func(text string, entities []tgbotapi.MessageEntity) {
		encoded := utf16.Encode([]rune(text))
		for _, entity := range entities {
			switch entity.Type {
			case "url":
				if entity.Offset < 0 || entity.Offset+entity.Length > len(encoded) {
					continue
				}
				add(string(utf16.Decode(encoded[entity.Offset : entity.Offset+entity.Length])))
			case "text_link":
				add(entity.URL)
			}
		}
		for _, raw := range urlPattern.FindAllString(text, -1) {
			add(raw)
		}
	}

	collect(msg.Text, msg.Entities)
	collect(msg.Caption, msg.CaptionEntities)
	return found
}

// Seen reports whether the URL is already present in the extracted set.
func Seen(set map[string]struct{}, url string) bool {
	_, ok := set[Normalize(url)]
	return ok
}

// Normalize reduces a URL to a comparable form: scheme and "www." stripped,
// host lowercased, trailing slash removed.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")
	if idx := strings.Index(s, "/"); idx >= 0 {
		return strings.ToLower(s[:idx]) + s[idx:]
	}
	return strings.ToLower(s)
}
