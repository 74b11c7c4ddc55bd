package sites

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sourcehound/sourcehound/internal/fuzzysearch"
)

const (
	directProbeTimeout  = 2 * time.Second
	reverseSearchBudget = 4 * time.Second
)

var (
	directExtensions   = []string{"png", "jpg", "jpeg", "gif"}
	directContentTypes = []string{"image/png", "image/jpeg", "image/gif"}
)

// ReverseSearcher is the subset of the hash-search client the direct-link
// resolver uses for best-effort source attribution.
type ReverseSearcher interface {
	SearchExact(ctx context.Context, image []byte) ([]fuzzysearch.Match, error)
}

// Direct resolves bare image URLs. It is the catch-all and must be registered
// last.
type Direct struct {
	client *http.Client
	fuzzy  ReverseSearcher
	logger *slog.Logger
}

// NewDirect creates the direct-link resolver.
func NewDirect(log *slog.Logger, fuzzy ReverseSearcher) *Direct {
	if log == nil {
		log = slog.Default()
	}
	return &Direct{
		client: &http.Client{Timeout: directProbeTimeout},
		fuzzy:  fuzzy,
		logger: log.With(slog.String("site", "direct")),
	}
}

func (d *Direct) Name() string {
	return "direct link"
}

// URLSupported accepts URLs with an allowed image extension whose Content-Type
// header, checked with a HEAD request, is an allowed image type.
func (d *Direct) URLSupported(ctx context.Context, url string) bool {
	supported := false
	for _, ext := range directExtensions {
		if strings.HasSuffix(url, ext) {
			supported = true
			break
		}
	}
	if !supported {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	contentType := resp.Header.Get("Content-Type")
	for _, allowed := range directContentTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// GetImages returns the URL itself as a record, with best-effort source
// attribution from an exact-match reverse search. Enrichment failure or
// timeout never fails the fetch.
func (d *Direct) GetImages(ctx context.Context, _ int64, url string) ([]PostInfo, error) {
	post := PostInfo{
		FileType: fileExt(url),
		URL:      url,
		SiteName: d.Name(),
	}
	if post.FileType == "" {
		return nil, fmt.Errorf("unable to determine file type for %s", url)
	}

	searchCtx, cancel := context.WithTimeout(ctx, reverseSearchBudget)
	defer cancel()
	if match, ok := d.reverseSearch(searchCtx, url); ok {
		d.logger.Debug("reverse search matched", slog.Int64("site_id", match.SiteID), slog.String("site", match.Site))
		post.SourceLink = match.SourceURL()
		post.SiteName = match.SiteName()
	}

	return []PostInfo{post}, nil
}

func (d *Direct) reverseSearch(ctx context.Context, url string) (fuzzysearch.Match, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fuzzysearch.Match{}, false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return fuzzysearch.Match{}, false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fuzzysearch.Match{}, false
	}

	matches, err := d.fuzzy.SearchExact(ctx, body)
	if err != nil || len(matches) == 0 {
		if err != nil {
			d.logger.Debug("reverse search failed", slog.Any("error", err))
		}
		return fuzzysearch.Match{}, false
	}
	return matches[0], true
}
