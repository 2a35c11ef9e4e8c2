package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"

	"github.com/followspot/followspot/bus"
	"github.com/followspot/followspot/config"
	"github.com/followspot/followspot/follows"
	"github.com/followspot/followspot/prefs"
	"github.com/followspot/followspot/rpc"
)

// Handlers holds the dependencies the HTTP API serves from. Panel commands go
// through the broker so HTTP callers and the dispatcher share one queue.
type Handlers struct {
	db     *sql.DB
	broker *rpc.Broker
	sched  *follows.Scheduler
	bus    *bus.Bus
	prefs  *prefs.Preferences
	cfg    *config.Config
}

// NewHandlers wires the handler set.
func NewHandlers(db *sql.DB, broker *rpc.Broker, sched *follows.Scheduler, b *bus.Bus, p *prefs.Preferences, cfg *config.Config) *Handlers {
	return &Handlers{db: db, broker: broker, sched: sched, bus: b, prefs: p, cfg: cfg}
}

// call forwards a panel command through the broker and writes the raw reply.
func (h *Handlers) call(w http.ResponseWriter, r *http.Request, cmd rpc.Command, payload json.RawMessage) {
	data, err := h.broker.Call(r.Context(), cmd, payload)
	if err != nil {
		writeRPCError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writeRPCError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := rpc.ErrCodeUnexpected
	var rerr *rpc.RemoteError
	if errors.As(err, &rerr) {
		code = rerr.Code
		switch rerr.Code {
		case rpc.ErrCodeUnavailable:
			status = http.StatusServiceUnavailable
		case rpc.ErrCodeBadRequest:
			status = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// HandleStreams returns the reconciled channel list.
func (h *Handlers) HandleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.call(w, r, rpc.CommandGetStreams, nil)
}

// HandleUser returns the authenticated viewer's profile.
func (h *Handlers) HandleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.call(w, r, rpc.CommandGetUser, nil)
}

// HandleRefresh forces a sync cycle and returns the fresh channel list.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.call(w, r, rpc.CommandRefresh, nil)
}

// HandleLogin stores the token obtained by the implicit-grant flow.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	h.call(w, r, rpc.CommandLogin, body)
}

// HandleLogout revokes and clears the stored credential.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.call(w, r, rpc.CommandLogout, nil)
}

// HandleAuthURL builds the implicit-grant authorize URL the panel opens in a
// popup. The returned state must come back on the redirect unchanged.
func (h *Handlers) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.cfg.ValidateAPIReady(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	oc := oauth2.Config{
		ClientID:    h.cfg.TwitchClientID,
		RedirectURL: h.cfg.TwitchRedirectURI,
		Scopes:      []string{h.cfg.TwitchScopes},
		Endpoint:    twitch.Endpoint,
	}
	state := uuid.New().String()
	url := oc.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "token"))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"url": url, "state": state})
}

// HandleStatus reports the scheduler state and current badge figures.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.sched.Streams(r.Context())
	live := follows.LiveCount(snap.Channels)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state":     h.sched.State().String(),
		"followed":  len(snap.Channels),
		"live":      live,
		"badge":     follows.CapLiveCount(live),
		"needsAuth": snap.NeedsAuth,
	})
}

// HandlePrefs reads or updates the panel preferences.
func (h *Handlers) HandlePrefs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all, err := h.prefs.All(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(all)
	case http.MethodPut, http.MethodPost:
		var updates map[string]string
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		for name, value := range updates {
			if err := h.prefs.Set(r.Context(), name, value); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
