package twitchapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/iter"
)

const (
	// DefaultPageSize is the page size used for paginated endpoints.
	DefaultPageSize = 100
	// MaxIDsPerRequest is the Helix limit on repeated id query parameters.
	MaxIDsPerRequest = 100

	// maxPages bounds the pagination loop so a server that keeps handing out
	// cursors cannot spin the fetch forever.
	maxPages = 1000

	maxAttempts = 3
	retryDelay  = 250 * time.Millisecond
)

// envelope is the list response shape shared by every Helix list endpoint.
type envelope[T any] struct {
	Data       []T `json:"data"`
	Pagination struct {
		Cursor string `json:"cursor"`
	} `json:"pagination"`
	Total int `json:"total"`
}

// getPage issues a single request against an API endpoint and decodes the
// envelope. Non-2xx responses become TransportError; 429 and 5xx are retried a
// bounded number of times before the error surfaces.
func getPage[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (envelope[T], error) {
	var env envelope[T]
	err := retry.Do(
		func() error {
			tok, err := c.TokenSource.Token(ctx)
			if err != nil {
				return err
			}
			u := c.apiBase() + endpoint
			if len(params) > 0 {
				u += "?" + params.Encode()
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Client-Id", c.ClientID)
			if tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			resp, err := c.http().Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					slog.Warn("failed to close response body", slog.Any("err", err))
				}
			}()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return &TransportError{Status: resp.StatusCode}
			}
			env = envelope[T]{}
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				return &ParseError{Err: err}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.RetryIf(isRetryableError),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return env, err
}

// fetchAll resolves one logical request into the full accumulated record list,
// following pagination cursors. pageSize 0 means a single request without
// pagination, used when only the envelope total matters (follower counts) or
// when the endpoint is queried per id batch (streams).
//
// The loop stops when the server returns no cursor or the accumulated length
// reaches the reported total. An empty page or a cursor identical to the
// previous one also terminates: the envelope protocol does not forbid a server
// from repeating a cursor forever, so both are treated as end of data.
func fetchAll[T any](ctx context.Context, c *Client, endpoint string, params url.Values, pageSize int) ([]T, int, error) {
	if pageSize == 0 {
		env, err := getPage[T](ctx, c, endpoint, params)
		if err != nil {
			return nil, 0, err
		}
		return env.Data, env.Total, nil
	}

	var out []T
	cursor := ""
	for page := 0; page < maxPages; page++ {
		p := cloneValues(params)
		p.Set("first", strconv.Itoa(pageSize))
		if cursor != "" {
			p.Set("after", cursor)
		}
		env, err := getPage[T](ctx, c, endpoint, p)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, env.Data...)
		next := env.Pagination.Cursor
		if next == "" {
			break
		}
		if env.Total > 0 && len(out) >= env.Total {
			break
		}
		if len(env.Data) == 0 || next == cursor {
			break
		}
		cursor = next
	}
	return out, len(out), nil
}

// fetchByIDs partitions ids into chunks of at most MaxIDsPerRequest, fetches
// the chunks concurrently and concatenates the results in chunk order. An
// empty id list resolves to an empty result without any network call. If any
// chunk fails the whole call fails.
func fetchByIDs[T any](ctx context.Context, c *Client, endpoint, idParam string, ids []string, pageSize int) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += MaxIDsPerRequest {
		end := min(start+MaxIDsPerRequest, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	results, err := iter.MapErr(chunks, func(chunk *[]string) ([]T, error) {
		params := url.Values{}
		for _, id := range *chunk {
			params.Add(idParam, id)
		}
		recs, _, err := fetchAll[T](ctx, c, endpoint, params, pageSize)
		return recs, err
	})
	if err != nil {
		return nil, err
	}
	var out []T
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
