package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const credentialProvider = "twitch"

// CredentialStore holds the single viewer access token. A missing row reads as
// an empty token, which the scheduler treats as unauthenticated.
type CredentialStore struct {
	DB *sql.DB
}

// GetToken returns the stored access token, or "" when none is stored.
func (c *CredentialStore) GetToken(ctx context.Context) (string, error) {
	var token sql.NullString
	err := c.DB.QueryRowContext(ctx,
		`SELECT access_token FROM credentials WHERE provider=$1`, credentialProvider).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token.String, nil
}

// SetToken upserts the access token.
func (c *CredentialStore) SetToken(ctx context.Context, token string) error {
	_, err := c.DB.ExecContext(ctx, `
		INSERT INTO credentials (provider, access_token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (provider)
		DO UPDATE SET access_token=EXCLUDED.access_token, updated_at=NOW()`,
		credentialProvider, token)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

// ClearToken removes the stored token. Clearing an absent token is not an
// error.
func (c *CredentialStore) ClearToken(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx,
		`DELETE FROM credentials WHERE provider=$1`, credentialProvider)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
