// Package source implements automatic source detection for images posted in
// group chats: hash-search candidates are filtered by distance, deduplicated
// against links already in the message, and surfaced as one localized reply.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sourcehound/sourcehound/internal/fuzzysearch"
	"github.com/sourcehound/sourcehound/internal/links"
	"github.com/sourcehound/sourcehound/internal/store"
)

// MaxDistance is the largest hash distance still considered a credible match.
const MaxDistance = 3

const typingInterval = 5 * time.Second

// Searcher queries the perceptual hash index for ranked candidates.
type Searcher interface {
	SearchRanked(ctx context.Context, image []byte) ([]fuzzysearch.Match, error)
}

// Transport is the chat-side surface the flow needs: replies, presence, and
// file downloads.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int, disablePreview bool) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// FlagStore reads per-chat configuration flags.
type FlagStore interface {
	Flag(ctx context.Context, chatID int64, name string) (bool, bool, error)
}

// Ranker applies viewer-aware ordering to candidate matches. The preference
// logic is owned by the collaborator; this flow only preserves its order.
type Ranker interface {
	Rank(ctx context.Context, userID int64, matches []fuzzysearch.Match) []fuzzysearch.Match
}

// Localizer renders a template key with named arguments for a language tag.
type Localizer interface {
	Render(lang, key string, args map[string]string) string
}

// Service runs the group auto-source flow.
type Service struct {
	searcher  Searcher
	transport Transport
	flags     FlagStore
	ranker    Ranker
	locales   Localizer
	logger    *slog.Logger
}

// NewService creates the auto-source service.
func NewService(log *slog.Logger, searcher Searcher, transport Transport, flags FlagStore, ranker Ranker, locales Localizer) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		searcher:  searcher,
		transport: transport,
		flags:     flags,
		ranker:    ranker,
		locales:   locales,
		logger:    log.With(slog.String("service", "source")),
	}
}

// HandleGroupPhoto processes one group photo message. Chats that have not
// opted in are skipped. An empty filtered result or a match the poster
// already linked produces no reply and no error.
func (s *Service) HandleGroupPhoto(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || len(msg.Photo) == 0 {
		return nil
	}
	enabled, ok, err := s.flags.Flag(ctx, msg.Chat.ID, store.GroupAddKey)
	if err != nil {
		return fmt.Errorf("unable to query group add config: %w", err)
	}
	if !ok || !enabled {
		return nil
	}

	// Keep a typing indicator alive for the whole flow; it is cancelled, not
	// waited on, right before any branch finishes.
	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go s.keepTyping(typingCtx, msg.Chat.ID)

	photo := largestPhoto(msg.Photo)
	image, err := s.transport.DownloadFile(ctx, photo.FileID)
	if err != nil {
		return fmt.Errorf("unable to download photo: %w", err)
	}

	matches, err := s.searcher.SearchRanked(ctx, image)
	if err != nil {
		return fmt.Errorf("unable to search image: %w", err)
	}
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	matches = s.ranker.Rank(ctx, userID, matches)

	wanted := make([]fuzzysearch.Match, 0, len(matches))
	for _, match := range matches {
		if match.Distance != nil && *match.Distance <= MaxDistance {
			wanted = append(wanted, match)
		}
	}
	if len(wanted) == 0 {
		s.logger.Debug("no credible matches", slog.Int64("chat_id", msg.Chat.ID))
		return nil
	}

	seen := links.Extract(msg)
	for _, match := range wanted {
		if links.Seen(seen, match.SourceURL()) {
			s.logger.Debug("source already linked", slog.Int64("chat_id", msg.Chat.ID))
			return nil
		}
	}

	lang := ""
	if msg.From != nil {
		lang = msg.From.LanguageCode
	}
	text := s.composeReply(lang, wanted)

	stopTyping()
	if err := s.transport.SendMessage(ctx, msg.Chat.ID, text, msg.MessageID, true); err != nil {
		return fmt.Errorf("unable to send group source message: %w", err)
	}
	return nil
}

func (s *Service) composeReply(lang string, wanted []fuzzysearch.Match) string {
	if len(wanted) == 1 {
		return s.locales.Render(lang, "automatic-single", map[string]string{
			"link": wanted[0].SourceURL(),
		})
	}
	var buf strings.Builder
	buf.WriteString(s.locales.Render(lang, "automatic-multiple", nil))
	buf.WriteString("\n")
	for _, match := range wanted {
		buf.WriteString(s.locales.Render(lang, "automatic-multiple-result", map[string]string{
			"link":     match.SourceURL(),
			"distance": strconv.FormatInt(*match.Distance, 10),
		}))
		buf.WriteString("\n")
	}
	return buf.String()
}

func (s *Service) keepTyping(ctx context.Context, chatID int64) {
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()
	for {
		if err := s.transport.SendChatAction(ctx, chatID, "typing"); err != nil {
			s.logger.Debug("send chat action failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// largestPhoto picks the highest resolution size Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best
}

// DistanceRanker is the default viewer-aware ordering policy: a stable sort
// by ascending distance.
type DistanceRanker struct{}

// Rank orders matches nearest first, preserving the incoming order for ties.
func (DistanceRanker) Rank(_ context.Context, _ int64, matches []fuzzysearch.Match) []fuzzysearch.Match {
	ranked := make([]fuzzysearch.Match, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Distance == nil {
			return false
		}
		if ranked[j].Distance == nil {
			return true
		}
		return *ranked[i].Distance < *ranked[j].Distance
	})
	return ranked
}
