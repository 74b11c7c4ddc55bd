package prune

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClampShortTextUntouched(t *testing.T) {
	t.Parallel()

	if got := Clamp("short reply"); got != "short reply" {
		t.Fatalf("expected the text unchanged, got %q", got)
	}
}

func TestClampToCutsAtLineBoundary(t *testing.T) {
	t.Parallel()

	text := "header\nhttps://e621.net/posts/1\nhttps://e621.net/posts/22222222"
	got := ClampTo(text, 45)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected an elision marker, got %q", got)
	}
	if strings.Contains(got, "22222222") {
		t.Fatalf("expected the overflowing line dropped, got %q", got)
	}
	if !strings.Contains(got, "https://e621.net/posts/1") {
		t.Fatalf("expected complete lines kept, got %q", got)
	}
}

func TestClampToKeepsRuneBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ñ", 50)
	got := ClampTo(text, 10)
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid utf-8, got %q", got)
	}
	if utf8.RuneCountInString(got) > 10 {
		t.Fatalf("expected at most 10 runes, got %d", utf8.RuneCountInString(got))
	}
}

func TestExceeds(t *testing.T) {
	t.Parallel()

	if Exceeds("fine") {
		t.Fatal("expected a short message to fit")
	}
	if !Exceeds(strings.Repeat("a", MaxMessageLength+1)) {
		t.Fatal("expected an over-limit message to be flagged")
	}
}
