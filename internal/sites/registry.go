package sites

import (
	"context"
	"log/slog"
)

// Registry holds site resolvers in priority order: resolvers with anchored
// host matchers come before the generic direct-link catch-all. It is the
// single seam for adding a provider.
type Registry struct {
	sites  []Site
	logger *slog.Logger
}

// NewRegistry creates a Registry dispatching to the given sites in order.
func NewRegistry(log *slog.Logger, sites ...Site) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sites:  sites,
		logger: log.With(slog.String("service", "sites")),
	}
}

// Find returns the first site whose applicability test accepts the URL. A
// false second return means the URL is unsupported, which is not an error.
func (r *Registry) Find(ctx context.Context, url string) (Site, bool) {
	for _, site := range r.sites {
		if site.URLSupported(ctx, url) {
			r.logger.Debug("matched site", slog.String("site", site.Name()), slog.String("url", url))
			return site, true
		}
	}
	return nil, false
}

// Sites returns the registered resolvers in dispatch order.
func (r *Registry) Sites() []Site {
	return r.sites
}
