// Package testutil holds shared test helpers: a mock Helix server and a
// Postgres fixture gated behind TEST_PG_DSN.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Envelope is the Helix response wrapper used by the mock handlers.
type Envelope struct {
	Data       any    `json:"data"`
	Pagination Cursor `json:"pagination,omitempty"`
	Total      int    `json:"total,omitempty"`
}

// Cursor is the pagination part of a Helix envelope.
type Cursor struct {
	Cursor string `json:"cursor,omitempty"`
}

// WriteEnvelope writes a Helix-style JSON envelope.
func WriteEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env) //nolint:errcheck // test mock response
}

// MockUsersResponse adds a handler for the /users endpoint.
func (m *MockTwitchServer) MockUsersResponse(users []map[string]string) {
	m.Handlers["/users"] = func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, Envelope{Data: users})
	}
}

// MockStreamsResponse adds a handler for the /streams endpoint.
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]any) {
	m.Handlers["/streams"] = func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, Envelope{Data: streams})
	}
}

// MockFollowedResponse adds a single-page handler for /channels/followed.
func (m *MockTwitchServer) MockFollowedResponse(edges []map[string]string) {
	m.Handlers["/channels/followed"] = func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, Envelope{Data: edges, Total: len(edges)})
	}
}

// MockGamesResponse adds a handler for the /games endpoint.
func (m *MockTwitchServer) MockGamesResponse(games []map[string]string) {
	m.Handlers["/games"] = func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, Envelope{Data: games})
	}
}
