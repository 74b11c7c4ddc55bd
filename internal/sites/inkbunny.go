package sites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const inkbunnySessionExpiredCode = 2

// ErrInkbunnyConfig marks fatal configuration problems (bad credentials or a
// restricted content-rating mask) detected at login. Retrying cannot succeed,
// so later calls short-circuit on it.
var ErrInkbunnyConfig = errors.New("inkbunny account misconfigured")

// Inkbunny resolves submission URLs through the Inkbunny submissions API. The
// session id is cached until the API signals expiry, which triggers exactly
// one re-login and retry.
type Inkbunny struct {
	matcher *regexp.Regexp

	username string
	password string

	mu       sync.Mutex
	sid      string
	fatalErr error

	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type inkbunnyLogin struct {
	ErrorCode   *int   `json:"error_code"`
	SID         string `json:"sid"`
	UserID      int64  `json:"user_id"`
	RatingsMask string `json:"ratingsmask"`
}

type inkbunnyFile struct {
	FileID                      string `json:"file_id"`
	FileName                    string `json:"file_name"`
	ThumbnailURLMediumNonCustom string `json:"thumbnail_url_medium_noncustom"`
	FileURLScreen               string `json:"file_url_screen"`
}

type inkbunnySubmission struct {
	SubmissionID string         `json:"submission_id"`
	Files        []inkbunnyFile `json:"files"`
}

type inkbunnySubmissions struct {
	ErrorCode   *int                 `json:"error_code"`
	Submissions []inkbunnySubmission `json:"submissions"`
}

// NewInkbunny creates the Inkbunny resolver. No login happens until the first
// fetch.
func NewInkbunny(log *slog.Logger, username, password string) *Inkbunny {
	if log == nil {
		log = slog.Default()
	}
	return &Inkbunny{
		matcher:  regexp.MustCompile(`https?://inkbunny\.net/s/(?P<id>\d+)`),
		username: username,
		password: password,
		apiBase:  "https://inkbunny.net",
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   log.With(slog.String("site", "inkbunny")),
	}
}

func (i *Inkbunny) Name() string {
	return "Inkbunny"
}

func (i *Inkbunny) URLSupported(_ context.Context, url string) bool {
	return i.matcher.MatchString(url)
}

func (i *Inkbunny) GetImages(ctx context.Context, _ int64, rawURL string) ([]PostInfo, error) {
	captures := i.matcher.FindStringSubmatch(rawURL)
	if captures == nil {
		return nil, fmt.Errorf("unrecognized inkbunny url: %s", rawURL)
	}
	subID := captures[i.matcher.SubexpIndex("id")]

	submissions, err := i.getSubmissions(ctx, subID)
	if err != nil {
		return nil, err
	}

	var posts []PostInfo
	for _, submission := range submissions.Submissions {
		for _, file := range submission.Files {
			fileType := fileExt(file.FileURLScreen)
			if fileType == "" {
				return nil, fmt.Errorf("inkbunny file missing screen url")
			}
			posts = append(posts, PostInfo{
				FileType:   fileType,
				URL:        file.FileURLScreen,
				Thumb:      file.ThumbnailURLMediumNonCustom,
				SourceLink: rawURL,
				SiteName:   i.Name(),
			})
		}
	}
	return posts, nil
}

// getSubmissions calls the submissions API with a valid session, logging in
// when no session exists. A session-expired response (error code 2) drops the
// session and retries exactly once; any other error code is fatal.
func (i *Inkbunny) getSubmissions(ctx context.Context, subID string) (*inkbunnySubmissions, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sid, err := i.sessionID(ctx)
		if err != nil {
			return nil, err
		}

		form := url.Values{}
		form.Set("sid", sid)
		form.Set("submission_ids", subID)
		var decoded inkbunnySubmissions
		if err := i.postForm(ctx, "/api_submissions.php", form, &decoded); err != nil {
			return nil, err
		}

		if decoded.ErrorCode == nil {
			return &decoded, nil
		}
		if *decoded.ErrorCode == inkbunnySessionExpiredCode {
			i.logger.Info("session expired, re-authenticating")
			i.dropSession()
			continue
		}
		return nil, fmt.Errorf("inkbunny api error code %d", *decoded.ErrorCode)
	}
	return nil, fmt.Errorf("inkbunny session expired after re-login")
}

// sessionID returns the cached session id, logging in when absent. Login
// failures caused by configuration are remembered and short-circuit later
// calls.
func (i *Inkbunny) sessionID(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fatalErr != nil {
		return "", i.fatalErr
	}
	if i.sid != "" {
		return i.sid, nil
	}

	form := url.Values{}
	form.Set("username", i.username)
	form.Set("password", i.password)
	var login inkbunnyLogin
	if err := i.postForm(ctx, "/api_login.php", form, &login); err != nil {
		return "", err
	}

	if login.ErrorCode != nil {
		i.fatalErr = fmt.Errorf("%w: login failed with code %d", ErrInkbunnyConfig, *login.ErrorCode)
		return "", i.fatalErr
	}
	if login.RatingsMask != "11111" {
		i.fatalErr = fmt.Errorf("%w: content ratings mask %q is restricted", ErrInkbunnyConfig, login.RatingsMask)
		return "", i.fatalErr
	}

	i.sid = login.SID
	i.logger.Debug("authenticated", slog.Int64("user_id", login.UserID))
	return i.sid, nil
}

func (i *Inkbunny) dropSession() {
	i.mu.Lock()
	i.sid = ""
	i.mu.Unlock()
}

func (i *Inkbunny) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("unable to build inkbunny request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to request inkbunny api: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unable to request inkbunny api: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to parse inkbunny json: %w", err)
	}
	return nil
}
