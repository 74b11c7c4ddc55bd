package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// GroupAddKey enables automatic source detection for images in a group chat.
const GroupAddKey = "group_add"

// GroupConfig stores per-chat boolean flags.
type GroupConfig struct {
	db     Querier
	logger *slog.Logger
}

// NewGroupConfig creates the group config store.
func NewGroupConfig(log *slog.Logger, db Querier) *GroupConfig {
	if log == nil {
		log = slog.Default()
	}
	return &GroupConfig{
		db:     db,
		logger: log.With(slog.String("service", "group_config")),
	}
}

// Flag returns the flag value for the chat. The second return is false when
// the flag was never set.
func (g *GroupConfig) Flag(ctx context.Context, chatID int64, name string) (bool, bool, error) {
	var value bool
	err := g.db.QueryRow(ctx, `SELECT value FROM group_config WHERE chat_id = $1 AND name = $2`, chatID, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("query group config: %w", err)
	}
	return value, true, nil
}

// SetFlag stores or replaces a flag for the chat.
func (g *GroupConfig) SetFlag(ctx context.Context, chatID int64, name string, value bool) error {
	_, err := g.db.Exec(ctx, `
		INSERT INTO group_config (chat_id, name, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chat_id, name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		chatID, name, value)
	if err != nil {
		return fmt.Errorf("set group config: %w", err)
	}
	g.logger.Debug("set group flag", slog.Int64("chat_id", chatID), slog.String("name", name), slog.Bool("value", value))
	return nil
}
