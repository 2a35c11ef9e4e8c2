// Package oauth keeps the stored access token honest. Implicit-grant tokens
// cannot be refreshed, so the only maintenance possible is periodic validation:
// a token Twitch no longer recognizes is cleared so the panel asks the viewer
// to sign in again instead of failing every sync.
package oauth

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/followspot/followspot/follows"
	"github.com/followspot/followspot/twitchapi"
)

// Validator is the token-validation dependency, satisfied by twitchapi.Client.
type Validator interface {
	ValidateToken(ctx context.Context) error
}

// CheckToken validates the stored token once. A 401 from the validate endpoint
// clears the credential; network failures and other statuses leave it alone.
func CheckToken(ctx context.Context, v Validator, creds follows.CredentialStore) error {
	token, err := creds.GetToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	if err := v.ValidateToken(ctx); err != nil {
		if twitchapi.IsAuthError(err) {
			slog.Info("stored token no longer valid, clearing credential")
			return creds.ClearToken(ctx)
		}
		return err
	}
	return nil
}

// StartValidator launches a goroutine that re-validates the stored token on a
// jittered interval until ctx is cancelled. Twitch requires hourly validation
// of user tokens; the default interval stays well inside that.
func StartValidator(ctx context.Context, v Validator, creds follows.CredentialStore, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := CheckToken(ctx2, v, creds)
			cancel()
			if err != nil {
				slog.Warn("token validation check failed", slog.Any("err", err))
			}
		}
	}()
}
