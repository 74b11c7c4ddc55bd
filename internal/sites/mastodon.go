package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"
)

// Mastodon resolves status URLs on any federated instance. Hosts that fail
// the instance-info probe are cached as unsupported for the process lifetime;
// supported hosts are re-probed on every call.
type Mastodon struct {
	mu          sync.RWMutex
	unsupported map[string]struct{}

	matcher *regexp.Regexp
	client  *http.Client
	logger  *slog.Logger
}

type mastodonStatus struct {
	URL              string                    `json:"url"`
	MediaAttachments []mastodonMediaAttachment `json:"media_attachments"`
}

type mastodonMediaAttachment struct {
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}

// NewMastodon creates the Mastodon resolver.
func NewMastodon(log *slog.Logger) *Mastodon {
	if log == nil {
		log = slog.Default()
	}
	return &Mastodon{
		unsupported: make(map[string]struct{}),
		matcher:     regexp.MustCompile(`(?P<host>https?://(?:\S+))/(?:notice|users/\w+/statuses|@\w+)/(?P<id>\d+)`),
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      log.With(slog.String("site", "mastodon")),
	}
}

func (m *Mastodon) Name() string {
	return "Mastodon"
}

// URLSupported probes the host's instance endpoint unless the host is already
// known unsupported. Probe failure marks the host unsupported and is never an
// error.
func (m *Mastodon) URLSupported(ctx context.Context, url string) bool {
	captures := m.matcher.FindStringSubmatch(url)
	if captures == nil {
		return false
	}
	host := captures[m.matcher.SubexpIndex("host")]

	m.mu.RLock()
	_, known := m.unsupported[host]
	m.mu.RUnlock()
	if known {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, host+"/api/v1/instance", nil)
	if err != nil {
		m.markUnsupported(host)
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := m.client.Do(req)
	if err != nil {
		m.markUnsupported(host)
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.markUnsupported(host)
		return false
	}
	return true
}

func (m *Mastodon) GetImages(ctx context.Context, _ int64, url string) ([]PostInfo, error) {
	captures := m.matcher.FindStringSubmatch(url)
	if captures == nil {
		return nil, fmt.Errorf("unrecognized mastodon url: %s", url)
	}
	host := captures[m.matcher.SubexpIndex("host")]
	statusID := captures[m.matcher.SubexpIndex("id")]

	endpoint := fmt.Sprintf("%s/api/v1/statuses/%s", host, statusID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build mastodon request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to request mastodon api: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to request mastodon api: status %d", resp.StatusCode)
	}

	var status mastodonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("unable to decode mastodon api: %w", err)
	}
	if len(status.MediaAttachments) == 0 {
		return nil, nil
	}

	posts := make([]PostInfo, 0, len(status.MediaAttachments))
	for _, media := range status.MediaAttachments {
		fileType := fileExt(media.URL)
		if fileType == "" {
			return nil, fmt.Errorf("mastodon attachment missing file type")
		}
		posts = append(posts, PostInfo{
			FileType:   fileType,
			URL:        media.URL,
			Thumb:      media.PreviewURL,
			SourceLink: status.URL,
			SiteName:   m.Name(),
		})
	}
	return posts, nil
}

func (m *Mastodon) markUnsupported(host string) {
	m.mu.Lock()
	m.unsupported[host] = struct{}{}
	m.mu.Unlock()
	m.logger.Debug("cached unsupported instance", slog.String("host", host))
}
