package sites

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestMastodonURLSupported(t *testing.T) {
	t.Parallel()

	var probes int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/instance" {
			atomic.AddInt64(&probes, 1)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	m := NewMastodon(nil)

	if !m.URLSupported(context.Background(), server.URL+"/@syfaro/123456") {
		t.Fatal("expected a live instance to be supported")
	}
	if !m.URLSupported(context.Background(), server.URL+"/users/syfaro/statuses/123456") {
		t.Fatal("expected the pleroma-style url shape to be supported")
	}
	if got := atomic.LoadInt64(&probes); got != 2 {
		t.Fatalf("expected live hosts to be re-probed each call, got %d probes", got)
	}
	if m.URLSupported(context.Background(), "https://example.com/photo/123456") {
		t.Fatal("expected an unmatched url shape to be rejected without probing")
	}
}

func TestMastodonUnsupportedHostCached(t *testing.T) {
	t.Parallel()

	var probes int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&probes, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := NewMastodon(nil)

	for i := 0; i < 3; i++ {
		if m.URLSupported(context.Background(), server.URL+"/@syfaro/123456") {
			t.Fatal("expected a failing instance probe to be unsupported")
		}
	}
	if got := atomic.LoadInt64(&probes); got != 1 {
		t.Fatalf("expected the failed host to be cached after one probe, got %d", got)
	}
}

func TestMastodonGetImages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses/123456" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"url": "https://mastodon.example/@syfaro/123456",
			"media_attachments": [
				{"url": "https://files.mastodon.example/one.png", "preview_url": "https://files.mastodon.example/one-small.png"},
				{"url": "https://files.mastodon.example/two.jpg", "preview_url": "https://files.mastodon.example/two-small.jpg"}
			]
		}`))
	}))
	defer server.Close()

	m := NewMastodon(nil)

	posts, err := m.GetImages(context.Background(), 0, server.URL+"/@syfaro/123456")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected two records, got %d", len(posts))
	}
	for _, post := range posts {
		if post.SourceLink != "https://mastodon.example/@syfaro/123456" {
			t.Fatalf("expected the status url as source link, got %q", post.SourceLink)
		}
	}
	if posts[0].FileType != "png" || posts[1].FileType != "jpg" {
		t.Fatalf("unexpected file types: %q, %q", posts[0].FileType, posts[1].FileType)
	}
}

func TestMastodonGetImagesNoAttachments(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url": "https://mastodon.example/@syfaro/123456", "media_attachments": []}`))
	}))
	defer server.Close()

	m := NewMastodon(nil)

	posts, err := m.GetImages(context.Background(), 0, server.URL+"/@syfaro/123456")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if posts != nil {
		t.Fatalf("expected no records for a text-only status, got %v", posts)
	}
}
