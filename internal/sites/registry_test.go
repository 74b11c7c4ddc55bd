package sites

import (
	"context"
	"strings"
	"testing"
)

// fakeSite accepts URLs containing its name.
type fakeSite struct {
	name  string
	calls int
}

func (s *fakeSite) Name() string {
	return s.name
}

func (s *fakeSite) URLSupported(_ context.Context, url string) bool {
	s.calls++
	return strings.Contains(url, s.name)
}

func (s *fakeSite) GetImages(context.Context, int64, string) ([]PostInfo, error) {
	return nil, nil
}

func TestRegistryFindOrder(t *testing.T) {
	t.Parallel()

	first := &fakeSite{name: "shared"}
	second := &fakeSite{name: "shared"}
	registry := NewRegistry(nil, first, second)

	site, ok := registry.Find(context.Background(), "https://shared.example.com/post/1")
	if !ok {
		t.Fatal("expected a match")
	}
	if site != Site(first) {
		t.Fatal("expected the first registered site to win")
	}
	if second.calls != 0 {
		t.Fatalf("expected dispatch to stop at the first match, got %d probes of the second site", second.calls)
	}
}

func TestRegistryFindUnsupported(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil, &fakeSite{name: "alpha"}, &fakeSite{name: "beta"})

	if _, ok := registry.Find(context.Background(), "https://gamma.example.com/post/1"); ok {
		t.Fatal("expected no match for an unsupported url")
	}
}

func TestRegistrySites(t *testing.T) {
	t.Parallel()

	alpha := &fakeSite{name: "alpha"}
	beta := &fakeSite{name: "beta"}
	registry := NewRegistry(nil, alpha, beta)

	got := registry.Sites()
	if len(got) != 2 || got[0] != Site(alpha) || got[1] != Site(beta) {
		t.Fatalf("expected registration order preserved, got %v", got)
	}
}
