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

	"golang.org/x/oauth2"
)

// TokenStore looks up a user's linked Twitter access token. A missing token is
// not an error; the resolver falls back to the app credential.
type TokenStore interface {
	LinkedToken(ctx context.Context, userID int64) (string, bool, error)
}

// Twitter resolves tweet status URLs through the Twitter v2 API, using the
// requesting user's linked token when one exists so protected tweets they can
// see resolve too.
type Twitter struct {
	matcher *regexp.Regexp

	apiBase     string
	bearerToken string
	tokens      TokenStore
	logger      *slog.Logger
}

type twitterVariant struct {
	BitRate     int64  `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type twitterMedia struct {
	MediaKey        string           `json:"media_key"`
	Type            string           `json:"type"`
	URL             string           `json:"url"`
	PreviewImageURL string           `json:"preview_image_url"`
	Variants        []twitterVariant `json:"variants"`
}

type twitterUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Protected bool   `json:"protected"`
}

type twitterTweet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	AuthorID    string `json:"author_id"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type twitterResponse struct {
	Data     *twitterTweet `json:"data"`
	Includes struct {
		Media []twitterMedia `json:"media"`
		Users []twitterUser  `json:"users"`
	} `json:"includes"`
}

// NewTwitter creates the Twitter resolver with the app-level bearer token.
func NewTwitter(log *slog.Logger, bearerToken string, tokens TokenStore) *Twitter {
	if log == nil {
		log = slog.Default()
	}
	return &Twitter{
		matcher:     regexp.MustCompile(`https://(?:mobile\.)?twitter\.com/(?:\w+)/status/(?P<id>\d+)`),
		apiBase:     "https://api.twitter.com",
		bearerToken: bearerToken,
		tokens:      tokens,
		logger:      log.With(slog.String("site", "twitter")),
	}
}

func (t *Twitter) Name() string {
	return "Twitter"
}

func (t *Twitter) URLSupported(_ context.Context, url string) bool {
	return t.matcher.MatchString(url)
}

func (t *Twitter) GetImages(ctx context.Context, userID int64, url string) ([]PostInfo, error) {
	captures := t.matcher.FindStringSubmatch(url)
	if captures == nil {
		return nil, fmt.Errorf("unrecognized twitter url: %s", url)
	}
	id := captures[t.matcher.SubexpIndex("id")]

	token := t.bearerToken
	if t.tokens != nil {
		linked, ok, err := t.tokens.LinkedToken(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("unable to query linked twitter account: %w", err)
		}
		if ok {
			t.logger.Debug("using linked credentials", slog.Int64("user_id", userID))
			token = linked
		}
	}

	tweet, err := t.showTweet(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if len(tweet.Includes.Media) == 0 {
		return nil, nil
	}
	if len(tweet.Includes.Users) == 0 {
		return nil, fmt.Errorf("twitter response missing author")
	}

	author := tweet.Includes.Users[0]
	sourceLink := fmt.Sprintf("https://twitter.com/%s/status/%s", author.Username, tweet.Data.ID)

	posts := make([]PostInfo, 0, len(tweet.Includes.Media))
	for _, media := range tweet.Includes.Media {
		post := PostInfo{
			Personal:     author.Protected,
			Title:        author.Username,
			ExtraCaption: tweet.Data.Text,
			SourceLink:   sourceLink,
			SiteName:     t.Name(),
			Thumb:        media.PreviewImageURL,
		}
		if videoURL, ok := bestVideoVariant(media); ok {
			post.URL = videoURL
			post.FileType = fileExt(videoURL)
		} else {
			post.URL = media.URL
			post.FileType = fileExt(media.URL)
			if post.Thumb == "" {
				post.Thumb = media.URL
			}
		}
		if post.FileType == "" || post.URL == "" {
			return nil, fmt.Errorf("twitter media missing url")
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (t *Twitter) showTweet(ctx context.Context, id, token string) (*twitterResponse, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client.Timeout = 10 * time.Second

	endpoint := fmt.Sprintf(
		"%s/2/tweets/%s?expansions=attachments.media_keys,author_id&media.fields=media_key,type,url,preview_image_url,variants&tweet.fields=text&user.fields=username,protected",
		t.apiBase, id,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build twitter request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to request twitter api: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to request twitter api: status %d", resp.StatusCode)
	}

	var decoded twitterResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("unable to parse twitter json: %w", err)
	}
	if decoded.Data == nil {
		return nil, fmt.Errorf("twitter response missing tweet")
	}
	return &decoded, nil
}

// bestVideoVariant picks the video variant with the highest bitrate. Ties keep
// the earliest variant.
func bestVideoVariant(media twitterMedia) (string, bool) {
	if media.Type != "video" && media.Type != "animated_gif" {
		return "", false
	}
	var best *twitterVariant
	for i := range media.Variants {
		variant := &media.Variants[i]
		if variant.URL == "" {
			continue
		}
		if best == nil || variant.BitRate > best.BitRate {
			best = variant
		}
	}
	if best == nil {
		return "", false
	}
	return best.URL, true
}
