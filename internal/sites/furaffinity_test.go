package sites

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sourcehound/sourcehound/internal/fuzzysearch"
)

type fakeURLLookup struct {
	matches []fuzzysearch.Match
	err     error
}

func (f *fakeURLLookup) LookupURL(context.Context, string) ([]fuzzysearch.Match, error) {
	return f.matches, f.err
}

type fakeSolver struct {
	cookies map[string]string
	err     error
	calls   int
}

func (f *fakeSolver) Solve(context.Context, string) (map[string]string, error) {
	f.calls++
	return f.cookies, f.err
}

const submissionPage = `<html><body>
<img id="submissionImg" src="//d.furaffinity.net/art/artist/12345/12345.art.png">
</body></html>`

func TestFurAffinityURLSupported(t *testing.T) {
	t.Parallel()

	fa := NewFurAffinity(nil, "a", "b", &fakeURLLookup{}, nil)
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "view page", url: "https://www.furaffinity.net/view/37614910/", want: true},
		{name: "full page", url: "https://www.furaffinity.net/full/37614910/", want: true},
		{name: "mirror asset", url: "https://d.facdn.net/art/artist/12345/12345.art.png", want: true},
		{name: "other host", url: "https://example.com/view/37614910/", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := fa.URLSupported(context.Background(), tt.url); got != tt.want {
				t.Fatalf("URLSupported(%s) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestFurAffinityGetImagesSubmission(t *testing.T) {
	t.Parallel()

	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte(submissionPage))
	}))
	defer server.Close()

	fa := NewFurAffinity(nil, "cookie-a", "cookie-b", &fakeURLLookup{}, nil)

	posts, err := fa.GetImages(context.Background(), 0, server.URL+"/view/37614910/")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected one record, got %d", len(posts))
	}
	if posts[0].URL != "https://d.furaffinity.net/art/artist/12345/12345.art.png" {
		t.Fatalf("expected a https image url, got %q", posts[0].URL)
	}
	if posts[0].FileType != "png" {
		t.Fatalf("expected png file type, got %q", posts[0].FileType)
	}
	if posts[0].SourceLink != server.URL+"/view/37614910/" {
		t.Fatalf("expected the page as source link, got %q", posts[0].SourceLink)
	}
	if !strings.Contains(gotCookie, "a=cookie-a") || !strings.Contains(gotCookie, "b=cookie-b") {
		t.Fatalf("expected session cookies on the request, got %q", gotCookie)
	}
}

func TestFurAffinityGetImagesNoImage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>submission not found</body></html>`))
	}))
	defer server.Close()

	fa := NewFurAffinity(nil, "a", "b", &fakeURLLookup{}, nil)

	posts, err := fa.GetImages(context.Background(), 0, server.URL+"/view/37614910/")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if posts != nil {
		t.Fatalf("expected no records for a page without the image, got %v", posts)
	}
}

func TestFurAffinityChallengeRetry(t *testing.T) {
	t.Parallel()

	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if !strings.Contains(r.Header.Get("Cookie"), "cf_clearance=solved") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(submissionPage))
	}))
	defer server.Close()

	solver := &fakeSolver{cookies: map[string]string{"cf_clearance": "solved"}}
	fa := NewFurAffinity(nil, "a", "b", &fakeURLLookup{}, solver)

	posts, err := fa.GetImages(context.Background(), 0, server.URL+"/view/37614910/")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected one record after the retry, got %d", len(posts))
	}
	if solver.calls != 1 {
		t.Fatalf("expected exactly one solve, got %d", solver.calls)
	}
	if got := atomic.LoadInt64(&requests); got != 2 {
		t.Fatalf("expected exactly one retry, got %d requests", got)
	}
}

func TestFurAffinityChallengeSolveFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fa := NewFurAffinity(nil, "a", "b", &fakeURLLookup{}, &fakeSolver{err: errors.New("browser pool exhausted")})

	posts, err := fa.GetImages(context.Background(), 0, server.URL+"/view/37614910/")
	if err != nil {
		t.Fatalf("expected solve failure to degrade to no result, got %v", err)
	}
	if posts != nil {
		t.Fatalf("expected no records, got %v", posts)
	}
}

func TestFurAffinityGetImagesMirrorAsset(t *testing.T) {
	t.Parallel()

	lookup := &fakeURLLookup{matches: []fuzzysearch.Match{{
		SiteID:   37614910,
		Site:     fuzzysearch.SiteFurAffinity,
		URL:      "https://d.furaffinity.net/art/artist/12345/12345.art.png",
		Filename: "12345.art.png",
	}}}
	fa := NewFurAffinity(nil, "a", "b", lookup, nil)

	posts, err := fa.GetImages(context.Background(), 0, "http://d.facdn.net/art/artist/12345/12345.art.png")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected one record, got %d", len(posts))
	}
	if posts[0].SourceLink != "https://www.furaffinity.net/view/37614910/" {
		t.Fatalf("expected the indexed view page, got %q", posts[0].SourceLink)
	}
}

func TestFurAffinityGetImagesMirrorAssetIndexMiss(t *testing.T) {
	t.Parallel()

	fa := NewFurAffinity(nil, "a", "b", &fakeURLLookup{}, nil)

	posts, err := fa.GetImages(context.Background(), 0, "https://d.facdn.net/art/artist/12345/12345.art.png")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected one record, got %d", len(posts))
	}
	if posts[0].SourceLink != "" {
		t.Fatalf("expected no attribution on an index miss, got %q", posts[0].SourceLink)
	}
	if posts[0].FileType != "png" {
		t.Fatalf("expected png file type, got %q", posts[0].FileType)
	}
}
