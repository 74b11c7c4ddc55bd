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

// Weasyl resolves submission URLs through the Weasyl JSON API.
type Weasyl struct {
	apiKey  string
	matcher *regexp.Regexp

	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type weasylMediaFile struct {
	URL *string `json:"url"`
}

type weasylMedia struct {
	Submission *[]weasylMediaFile `json:"submission"`
	Thumbnail  *[]weasylMediaFile `json:"thumbnail"`
}

type weasylResponse struct {
	Media *weasylMedia `json:"media"`
}

// NewWeasyl creates the Weasyl resolver.
func NewWeasyl(log *slog.Logger, apiKey string) *Weasyl {
	if log == nil {
		log = slog.Default()
	}
	return &Weasyl{
		apiKey:  apiKey,
		matcher: regexp.MustCompile(`https?://www\.weasyl\.com/(?:(?:~|%7)(?:\w+)/submissions|submission)/(?P<id>\d+)(?:/\S+)`),
		apiBase: "https://www.weasyl.com",
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  log.With(slog.String("site", "weasyl")),
	}
}

func (w *Weasyl) Name() string {
	return "Weasyl"
}

func (w *Weasyl) URLSupported(_ context.Context, url string) bool {
	return w.matcher.MatchString(url)
}

func (w *Weasyl) GetImages(ctx context.Context, _ int64, url string) ([]PostInfo, error) {
	captures := w.matcher.FindStringSubmatch(url)
	if captures == nil {
		return nil, fmt.Errorf("unrecognized weasyl url: %s", url)
	}
	subID := captures[w.matcher.SubexpIndex("id")]

	endpoint := fmt.Sprintf("%s/api/submissions/%s/view", w.apiBase, subID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build weasyl request: %w", err)
	}
	req.Header.Set("X-Weasyl-API-Key", w.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to request weasyl api: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to request weasyl api: status %d", resp.StatusCode)
	}

	var decoded weasylResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("unable to parse weasyl json api: %w", err)
	}
	if decoded.Media == nil || decoded.Media.Submission == nil || decoded.Media.Thumbnail == nil {
		return nil, fmt.Errorf("weasyl response missing media")
	}

	submissions := *decoded.Media.Submission
	thumbs := *decoded.Media.Thumbnail
	if len(submissions) == 0 {
		return nil, nil
	}

	// Submissions and thumbnails are parallel arrays zipped positionally.
	posts := make([]PostInfo, 0, len(submissions))
	for i, sub := range submissions {
		if i >= len(thumbs) {
			break
		}
		if sub.URL == nil || thumbs[i].URL == nil {
			return nil, fmt.Errorf("weasyl media entry missing url")
		}
		fileType := fileExt(*sub.URL)
		if fileType == "" {
			return nil, fmt.Errorf("weasyl media entry missing file type")
		}
		posts = append(posts, PostInfo{
			FileType:   fileType,
			URL:        *sub.URL,
			Thumb:      *thumbs[i].URL,
			SourceLink: url,
			SiteName:   w.Name(),
		})
	}
	return posts, nil
}
