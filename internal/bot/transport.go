package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sourcehound/sourcehound/internal/prune"
)

// Transport exposes the chat operations the rest of the system needs,
// backed by the Telegram client.
type Transport struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

// NewTransport creates a Transport around an authorized Telegram client.
func NewTransport(api *tgbotapi.BotAPI) *Transport {
	return &Transport{
		api:        api,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SendMessage sends a reply, optionally with link previews disabled.
func (t *Transport) SendMessage(_ context.Context, chatID int64, text string, replyTo int, disablePreview bool) error {
	message := tgbotapi.NewMessage(chatID, prune.Clamp(text))
	if replyTo > 0 {
		message.ReplyToMessageID = replyTo
	}
	message.DisableWebPagePreview = disablePreview
	if _, err := t.api.Send(message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendChatAction sends a presence indicator such as "typing".
func (t *Transport) SendChatAction(_ context.Context, chatID int64, action string) error {
	_, err := t.api.Request(tgbotapi.NewChatAction(chatID, action))
	return err
}

// DownloadFile fetches a Telegram file's bytes by file id.
func (t *Transport) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
