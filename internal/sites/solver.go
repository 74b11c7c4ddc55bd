package sites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// FlareSolver implements ChallengeSolver against a FlareSolverr endpoint,
// which drives a real browser through the challenge and hands back the
// resulting cookies.
type FlareSolver struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type flareSolverRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

type flareSolverResponse struct {
	Status   string `json:"status"`
	Solution struct {
		Cookies []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"cookies"`
	} `json:"solution"`
}

// NewFlareSolver creates a solver client for the given endpoint.
func NewFlareSolver(log *slog.Logger, endpoint string) *FlareSolver {
	if log == nil {
		log = slog.Default()
	}
	return &FlareSolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 90 * time.Second},
		logger:   log.With(slog.String("service", "flaresolver")),
	}
}

// Solve runs the challenge for the given URL and returns the cookie set.
func (s *FlareSolver) Solve(ctx context.Context, url string) (map[string]string, error) {
	if s.endpoint == "" {
		return nil, fmt.Errorf("no challenge solver endpoint configured")
	}
	payload, err := json.Marshal(flareSolverRequest{
		Cmd:        "request.get",
		URL:        url,
		MaxTimeout: 60000,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to build solver request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("unable to build solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to request challenge solver: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to request challenge solver: status %d", resp.StatusCode)
	}

	var decoded flareSolverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("unable to parse solver response: %w", err)
	}
	if decoded.Status != "ok" {
		return nil, fmt.Errorf("challenge solver returned status %q", decoded.Status)
	}

	cookies := make(map[string]string, len(decoded.Solution.Cookies))
	for _, cookie := range decoded.Solution.Cookies {
		cookies[cookie.Name] = cookie.Value
	}
	s.logger.Debug("challenge solved", slog.Int("cookies", len(cookies)))
	return cookies, nil
}
