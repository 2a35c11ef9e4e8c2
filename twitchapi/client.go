// Package twitchapi is a typed client for the Twitch Helix endpoints the
// follow tracker consumes: the viewer profile, followed-channel edges, live
// streams, users and games. All list endpoints share one envelope shape
// ({data, pagination{cursor}, total}); pagination following and id batching
// are handled here so callers always see complete record lists.
package twitchapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	// DefaultAPIBaseURL is the Helix API root.
	DefaultAPIBaseURL = "https://api.twitch.tv/helix/"
	// DefaultAuthBaseURL is the OAuth root used for revocation and validation.
	DefaultAuthBaseURL = "https://id.twitch.tv/oauth2/"
)

// TokenSource supplies the user access token injected into each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, convenient for tests.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Client calls the Helix API on behalf of one authenticated viewer.
type Client struct {
	TokenSource TokenSource
	ClientID    string
	APIBaseURL  string
	AuthBaseURL string
	HTTPClient  *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) apiBase() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	return DefaultAPIBaseURL
}

func (c *Client) authBase() string {
	if c.AuthBaseURL != "" {
		return c.AuthBaseURL
	}
	return DefaultAuthBaseURL
}

// GetViewer resolves the user the access token belongs to.
func (c *Client) GetViewer(ctx context.Context) (User, error) {
	params := url.Values{}
	params.Set("first", "100")
	env, err := getPage[User](ctx, c, "users", params)
	if err != nil {
		return User{}, err
	}
	if len(env.Data) == 0 {
		return User{}, errors.New("twitch api: viewer not found")
	}
	return env.Data[0], nil
}

// GetFollowedEdges lists every channel the viewer follows, across all pages.
func (c *Client) GetFollowedEdges(ctx context.Context, viewerID string) ([]FollowedEdge, error) {
	if viewerID == "" {
		return nil, errors.New("twitch api: viewer id empty")
	}
	params := url.Values{}
	params.Set("user_id", viewerID)
	edges, _, err := fetchAll[FollowedEdge](ctx, c, "channels/followed", params, DefaultPageSize)
	return edges, err
}

// GetUsers fetches user records for the given ids, batched by 100.
func (c *Client) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	return fetchByIDs[User](ctx, c, "users", "id", ids, DefaultPageSize)
}

// GetLiveStreams fetches the live streams among the given user ids, batched by
// 100. Each batch is a single unpaginated request: at most one stream exists
// per id, so a 100-id batch always fits one page.
func (c *Client) GetLiveStreams(ctx context.Context, ids []string) ([]Stream, error) {
	return fetchByIDs[Stream](ctx, c, "streams", "user_id", ids, 0)
}

// GetGames fetches game records for the given ids, batched by 100.
func (c *Client) GetGames(ctx context.Context, ids []string) ([]Game, error) {
	return fetchByIDs[Game](ctx, c, "games", "id", ids, DefaultPageSize)
}

// GetFollowerCount returns the aggregate follower total for a channel. Only
// the envelope total is wanted, so this is a single unpaginated request.
func (c *Client) GetFollowerCount(ctx context.Context, channelID string) (int, error) {
	if channelID == "" {
		return 0, errors.New("twitch api: channel id empty")
	}
	params := url.Values{}
	params.Set("broadcaster_id", channelID)
	_, total, err := fetchAll[follower](ctx, c, "channels/followers", params, 0)
	return total, err
}

// RevokeToken invalidates the access token server-side. The call is best
// effort: logout must always succeed locally, so failures are logged and
// swallowed.
func (c *Client) RevokeToken(ctx context.Context) {
	tok, err := c.TokenSource.Token(ctx)
	if err != nil || tok == "" {
		return
	}
	params := url.Values{}
	params.Set("client_id", c.ClientID)
	params.Set("token", tok)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authBase()+"revoke?"+params.Encode(), nil)
	if err != nil {
		return
	}
	resp, err := c.http().Do(req)
	if err != nil {
		slog.Warn("token revocation failed", slog.Any("err", err))
		return
	}
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("token revocation rejected", slog.Int("status", resp.StatusCode))
	}
}

// ValidateToken checks the stored token against the OAuth validate endpoint.
// Implicit-grant tokens cannot be refreshed, so a 401 here means the user has
// to log in again; callers detect that with IsAuthError.
func (c *Client) ValidateToken(ctx context.Context) error {
	tok, err := c.TokenSource.Token(ctx)
	if err != nil {
		return err
	}
	if tok == "" {
		return &TransportError{Status: http.StatusUnauthorized}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authBase()+"validate", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "OAuth "+tok)
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &TransportError{Status: resp.StatusCode}
	}
	return nil
}
