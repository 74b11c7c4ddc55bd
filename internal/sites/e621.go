package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// E621 resolves e621/e926 post pages and CDN asset URLs through the board's
// JSON API.
type E621 struct {
	show *regexp.Regexp
	data *regexp.Regexp

	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type e621PostFile struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

type e621PostPreview struct {
	URL string `json:"url"`
}

type e621Post struct {
	ID      int64           `json:"id"`
	File    e621PostFile    `json:"file"`
	Preview e621PostPreview `json:"preview"`
}

type e621Response struct {
	Post *e621Post `json:"post"`
}

// NewE621 creates the e621 resolver.
func NewE621(log *slog.Logger) *E621 {
	if log == nil {
		log = slog.Default()
	}
	return &E621{
		show: regexp.MustCompile(`https?://(?P<host>e(?:621|926)\.net)/(?:post/show/|posts/)(?P<id>\d+)(?:/(?P<tags>.+))?`),
		data: regexp.MustCompile(`https?://(?P<host>static\d+\.e(?:621|926)\.net)/data/(?:(?P<modifier>sample|preview)/)?[0-9a-f]{2}/[0-9a-f]{2}/(?P<md5>[0-9a-f]{32})\.(?P<ext>.+)`),

		apiBase: "https://e621.net",
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  log.With(slog.String("site", "e621")),
	}
}

func (e *E621) Name() string {
	return "e621"
}

func (e *E621) URLSupported(_ context.Context, url string) bool {
	return e.show.MatchString(url) || e.data.MatchString(url)
}

func (e *E621) GetImages(ctx context.Context, _ int64, url string) ([]PostInfo, error) {
	var endpoint string
	if captures := e.show.FindStringSubmatch(url); captures != nil {
		id := captures[e.show.SubexpIndex("id")]
		endpoint = fmt.Sprintf("%s/posts/%s.json", e.apiBase, id)
	} else if captures := e.data.FindStringSubmatch(url); captures != nil {
		md5 := captures[e.data.SubexpIndex("md5")]
		endpoint = fmt.Sprintf("%s/posts.json?md5=%s", e.apiBase, md5)
	} else {
		return nil, fmt.Errorf("unrecognized e621 url: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build e621 request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to request e621 api: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to request e621 api: status %d", resp.StatusCode)
	}

	var decoded e621Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("unable to parse e621 json: %w", err)
	}
	if decoded.Post == nil || decoded.Post.File.URL == "" || decoded.Post.File.Ext == "" {
		return nil, fmt.Errorf("e621 response missing post file")
	}

	return []PostInfo{{
		FileType:   decoded.Post.File.Ext,
		URL:        decoded.Post.File.URL,
		Thumb:      decoded.Post.Preview.URL,
		SourceLink: fmt.Sprintf("https://e621.net/posts/%d", decoded.Post.ID),
		SiteName:   e.Name(),
	}}, nil
}
