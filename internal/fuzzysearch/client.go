package fuzzysearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.fuzzysearch.net"

// Client talks to the external perceptual hash-search service. The service
// owns hashing and indexing; this client only submits images or URLs and
// decodes candidate matches.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client with the given API key.
func NewClient(log *slog.Logger, apiKey string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.With(slog.String("service", "fuzzysearch")),
	}
}

// SearchExact submits image bytes and returns only exact (distance zero)
// matches.
func (c *Client) SearchExact(ctx context.Context, image []byte) ([]Match, error) {
	return c.searchImage(ctx, image, "exact")
}

// SearchRanked submits image bytes and returns close matches ordered by
// distance, nearest first.
func (c *Client) SearchRanked(ctx context.Context, image []byte) ([]Match, error) {
	return c.searchImage(ctx, image, "close")
}

func (c *Client) searchImage(ctx context.Context, image []byte, matchType string) ([]Match, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "image")
	if err != nil {
		return nil, fmt.Errorf("unable to build image search request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("unable to build image search request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("unable to build image search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/image?type=%s", c.baseURL, matchType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("unable to build image search request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	return c.do(req)
}

// LookupURL finds indexed posts whose media URL matches exactly.
func (c *Client) LookupURL(ctx context.Context, mediaURL string) ([]Match, error) {
	endpoint := fmt.Sprintf("%s/url?url=%s", c.baseURL, url.QueryEscape(mediaURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build url lookup request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]Match, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to request hash search api: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to request hash search api: status %d", resp.StatusCode)
	}
	var matches []Match
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return nil, fmt.Errorf("unable to decode hash search response: %w", err)
	}
	c.logger.Debug("hash search completed", slog.Int("matches", len(matches)))
	return matches, nil
}
