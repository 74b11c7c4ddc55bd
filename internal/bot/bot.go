// Package bot runs the Telegram side: long-polling updates, routing group
// photos to automatic source detection and link messages to site resolvers.
package bot

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sourcehound/sourcehound/internal/links"
	"github.com/sourcehound/sourcehound/internal/locales"
	"github.com/sourcehound/sourcehound/internal/sites"
	"github.com/sourcehound/sourcehound/internal/source"
	"github.com/sourcehound/sourcehound/internal/store"
)

// Bot wires Telegram updates to the resolver registry and the auto-source
// flow. Each update is handled on its own goroutine; no cross-message
// ordering is guaranteed.
type Bot struct {
	api       *tgbotapi.BotAPI
	transport *Transport
	registry  *sites.Registry
	source    *source.Service
	creds     *store.Credentials
	locales   *locales.Renderer
	logger    *slog.Logger
}

// New creates a Bot around an authorized Telegram client.
func New(log *slog.Logger, api *tgbotapi.BotAPI, transport *Transport, registry *sites.Registry, src *source.Service, creds *store.Credentials, renderer *locales.Renderer) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		api:       api,
		transport: transport,
		registry:  registry,
		source:    src,
		creds:     creds,
		locales:   renderer,
		logger:    log.With(slog.String("service", "bot")),
	}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Info("started", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("updates channel closed")
				return nil
			}
			go func() {
				if err := b.handleUpdate(ctx, update); err != nil {
					b.logger.Error("handle update failed", slog.Any("error", err))
				}
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	if len(msg.Photo) > 0 && (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		return b.source.HandleGroupPhoto(ctx, msg)
	}
	if msg.IsCommand() && msg.Command() == "link" {
		return b.handleLinkCommand(ctx, msg)
	}
	if msg.Text != "" {
		return b.handleText(ctx, msg)
	}
	return nil
}

// handleLinkCommand stores a user-supplied Twitter access token and confirms
// with a localized welcome.
func (b *Bot) handleLinkCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		return nil
	}
	if err := b.creds.SetLinkedToken(ctx, msg.From.ID, token); err != nil {
		return err
	}
	text := b.locales.Render(msg.From.LanguageCode, "twitter-welcome", map[string]string{
		"userName": msg.From.UserName,
	})
	return b.transport.SendMessage(ctx, msg.Chat.ID, text, msg.MessageID, false)
}

// handleText resolves the first supported link in a message and replies with
// its source. Unsupported URLs are ignored silently.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	lang := ""
	var userID int64
	if msg.From != nil {
		lang = msg.From.LanguageCode
		userID = msg.From.ID
	}

	for _, url := range links.ExtractRaw(msg) {
		if !strings.HasPrefix(url, "http") {
			url = "https://" + url
		}
		site, ok := b.registry.Find(ctx, url)
		if !ok {
			continue
		}
		posts, err := site.GetImages(ctx, userID, url)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			text := b.locales.Render(lang, "reverse-no-results", nil)
			return b.transport.SendMessage(ctx, msg.Chat.ID, text, msg.MessageID, true)
		}
		post := posts[0]
		link := post.SourceLink
		if link == "" {
			link = post.URL
		}
		text := b.locales.Render(lang, "reverse-result", map[string]string{
			"site": post.SiteName,
			"link": link,
		})
		return b.transport.SendMessage(ctx, msg.Chat.ID, text, msg.MessageID, true)
	}
	return nil
}
