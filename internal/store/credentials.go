package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Credentials stores per-user linked Twitter access tokens.
type Credentials struct {
	db     Querier
	logger *slog.Logger
}

// NewCredentials creates the credential store.
func NewCredentials(log *slog.Logger, db Querier) *Credentials {
	if log == nil {
		log = slog.Default()
	}
	return &Credentials{
		db:     db,
		logger: log.With(slog.String("service", "credentials")),
	}
}

// LinkedToken returns the user's linked access token. The second return is
// false when the user never linked an account.
func (c *Credentials) LinkedToken(ctx context.Context, userID int64) (string, bool, error) {
	var token string
	err := c.db.QueryRow(ctx, `SELECT access_token FROM twitter_accounts WHERE user_id = $1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query twitter account: %w", err)
	}
	return token, true, nil
}

// SetLinkedToken stores or replaces the user's linked access token.
func (c *Credentials) SetLinkedToken(ctx context.Context, userID int64, token string) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO twitter_accounts (user_id, access_token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET access_token = EXCLUDED.access_token, updated_at = now()`,
		userID, token)
	if err != nil {
		return fmt.Errorf("set twitter account: %w", err)
	}
	c.logger.Info("linked twitter account", slog.Int64("user_id", userID))
	return nil
}
