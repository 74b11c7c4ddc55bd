package sites

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sourcehound/sourcehound/internal/fuzzysearch"
)

// URLLookup finds indexed posts by exact media URL.
type URLLookup interface {
	LookupURL(ctx context.Context, url string) ([]fuzzysearch.Match, error)
}

// ChallengeSolver obtains a fresh cookie set after an anti-bot challenge
// (HTTP 429/503). Solving happens out of band, typically through a headless
// browser service.
type ChallengeSolver interface {
	Solve(ctx context.Context, url string) (map[string]string, error)
}

// FurAffinity resolves submission pages by scraping and mirror asset URLs
// through the hash index. Session cookies are seeded at construction and
// replaced wholesale when a challenge is solved.
type FurAffinity struct {
	mu      sync.RWMutex
	cookies map[string]string

	fuzzy  URLLookup
	solver ChallengeSolver
	client *http.Client
	logger *slog.Logger
}

var furAffinityImagePrefix = regexp.MustCompile(`^//`)

// NewFurAffinity creates the FurAffinity resolver with the "a"/"b" session
// cookie pair.
func NewFurAffinity(log *slog.Logger, cookieA, cookieB string, fuzzy URLLookup, solver ChallengeSolver) *FurAffinity {
	if log == nil {
		log = slog.Default()
	}
	return &FurAffinity{
		cookies: map[string]string{
			"a": cookieA,
			"b": cookieB,
		},
		fuzzy:  fuzzy,
		solver: solver,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: log.With(slog.String("site", "furaffinity")),
	}
}

func (f *FurAffinity) Name() string {
	return "FurAffinity"
}

func (f *FurAffinity) URLSupported(_ context.Context, url string) bool {
	return strings.Contains(url, "furaffinity.net/view/") ||
		strings.Contains(url, "furaffinity.net/full/") ||
		strings.Contains(url, "facdn.net/art/")
}

func (f *FurAffinity) GetImages(ctx context.Context, _ int64, url string) ([]PostInfo, error) {
	var (
		post *PostInfo
		err  error
	)
	if strings.Contains(url, "facdn.net/art/") {
		post, err = f.loadDirectURL(ctx, url)
	} else {
		post, err = f.loadSubmission(ctx, url)
	}
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}
	return []PostInfo{*post}, nil
}

// loadDirectURL resolves a mirror asset URL through the hash index by exact
// URL. An index miss falls back to the raw URL without attribution.
func (f *FurAffinity) loadDirectURL(ctx context.Context, url string) (*PostInfo, error) {
	url = strings.Replace(url, "http://", "https://", 1)

	matches, err := f.fuzzy.LookupURL(ctx, url)
	if err != nil || len(matches) == 0 {
		if err != nil {
			f.logger.Debug("url lookup failed", slog.Any("error", err))
		}
		fileType := fileExt(url)
		if fileType == "" {
			return nil, fmt.Errorf("unable to determine file type for %s", url)
		}
		return &PostInfo{
			FileType: fileType,
			URL:      url,
			SiteName: f.Name(),
		}, nil
	}

	match := matches[0]
	fileType := fileExt(match.Filename)
	if fileType == "" {
		return nil, fmt.Errorf("furaffinity index entry missing filename")
	}
	return &PostInfo{
		FileType:   fileType,
		URL:        match.URL,
		SourceLink: match.SourceURL(),
		SiteName:   f.Name(),
	}, nil
}

func (f *FurAffinity) loadSubmission(ctx context.Context, url string) (*PostInfo, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to request furaffinity submission: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		_ = resp.Body.Close()
		if !f.solveChallenge(ctx, url) {
			return nil, nil
		}
		resp, err = f.get(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("unable to retry furaffinity submission: %w", err)
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse furaffinity page: %w", err)
	}

	img := doc.Find("#submissionImg").First()
	if img.Length() == 0 {
		return nil, nil
	}
	src, ok := img.Attr("src")
	if !ok {
		return nil, fmt.Errorf("furaffinity was missing src")
	}
	imageURL := furAffinityImagePrefix.ReplaceAllString(src, "https://")
	if !strings.HasPrefix(imageURL, "http") {
		imageURL = "https:" + imageURL
	}

	fileType := fileExt(imageURL)
	if fileType == "" {
		return nil, fmt.Errorf("unable to determine file type for %s", imageURL)
	}
	return &PostInfo{
		FileType:   fileType,
		URL:        imageURL,
		SourceLink: url,
		SiteName:   f.Name(),
	}, nil
}

func (f *FurAffinity) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", f.cookieHeader())
	req.Header.Set("User-Agent", userAgent)
	return f.client.Do(req)
}

// solveChallenge merges freshly solved cookies into the session jar. Solve
// failure degrades to "no result" rather than failing the fetch.
func (f *FurAffinity) solveChallenge(ctx context.Context, url string) bool {
	if f.solver == nil {
		return false
	}
	cookies, err := f.solver.Solve(ctx, url)
	if err != nil {
		f.logger.Warn("challenge solve failed", slog.Any("error", err))
		return false
	}
	f.mu.Lock()
	for name, value := range cookies {
		f.cookies[name] = value
	}
	f.mu.Unlock()
	f.logger.Info("merged challenge cookies", slog.Int("count", len(cookies)))
	return true
}

func (f *FurAffinity) cookieHeader() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pairs := make([]string, 0, len(f.cookies))
	for name, value := range f.cookies {
		pairs = append(pairs, fmt.Sprintf("%s=%s", name, value))
	}
	return strings.Join(pairs, "; ")
}
