package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/followspot/followspot/follows"
	"github.com/followspot/followspot/twitchapi"
)

// Error codes reported to callers. Auth problems are not errors on the wire:
// they come back as a needs-authentication data payload, matching what the
// panel expects.
const (
	ErrCodeUnavailable = "temporarily_unavailable"
	ErrCodeUnexpected  = "unexpected_error"
	ErrCodeBadRequest  = "bad_request"
)

// Service is the scheduler surface the dispatcher drives.
type Service interface {
	Streams(ctx context.Context) (follows.Result, error)
	Sync(ctx context.Context) (follows.Result, error)
	Viewer(ctx context.Context) (twitchapi.User, error)
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) error
}

// StreamsInfo is the reply payload for getStreamsInfo and refresh.
type StreamsInfo struct {
	Channels []follows.Channel `json:"channels"`
}

// NeedsAuth is the reply payload raised instead of data when no valid
// credential exists.
type NeedsAuth struct {
	NeedsAuthentication bool `json:"needsAuthentication"`
}

// LoginPayload carries the token supplied by the login flow.
type LoginPayload struct {
	Token string `json:"token"`
}

// Dispatcher services broker requests against the scheduler, one at a time.
type Dispatcher struct {
	Broker  *Broker
	Service Service
}

// Run consumes requests until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.Broker.Requests():
			resp := d.handle(ctx, req)
			if !d.Broker.Resolve(resp) {
				slog.Debug("reply dropped: caller gone", slog.Uint64("id", req.ID))
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, req Request) Response {
	switch req.Command {
	case CommandGetStreams:
		res, err := d.Service.Streams(ctx)
		return d.streamsResponse(req.ID, res, err)
	case CommandRefresh:
		res, err := d.Service.Sync(ctx)
		return d.streamsResponse(req.ID, res, err)
	case CommandGetUser:
		u, err := d.Service.Viewer(ctx)
		if err != nil {
			if errors.Is(err, follows.ErrNeedsAuth) {
				return dataResponse(req.ID, NeedsAuth{NeedsAuthentication: true})
			}
			return errResponse(req.ID, err)
		}
		return dataResponse(req.ID, u)
	case CommandLogin:
		var payload LoginPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil || payload.Token == "" {
			return Response{ID: req.ID, Err: ErrCodeBadRequest}
		}
		if err := d.Service.Login(ctx, payload.Token); err != nil {
			return errResponse(req.ID, err)
		}
		return dataResponse(req.ID, struct{}{})
	case CommandLogout:
		if err := d.Service.Logout(ctx); err != nil {
			return errResponse(req.ID, err)
		}
		return dataResponse(req.ID, struct{}{})
	default:
		return Response{ID: req.ID, Err: ErrCodeBadRequest}
	}
}

func (d *Dispatcher) streamsResponse(id uint64, res follows.Result, err error) Response {
	if err != nil {
		return errResponse(id, err)
	}
	if res.NeedsAuth {
		return dataResponse(id, NeedsAuth{NeedsAuthentication: true})
	}
	if res.Channels == nil {
		res.Channels = []follows.Channel{}
	}
	return dataResponse(id, StreamsInfo{Channels: res.Channels})
}

func dataResponse(id uint64, v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{ID: id, Err: ErrCodeUnexpected}
	}
	return Response{ID: id, Data: data}
}

func errResponse(id uint64, err error) Response {
	if errors.Is(err, follows.ErrUnavailable) {
		return Response{ID: id, Err: ErrCodeUnavailable}
	}
	return Response{ID: id, Err: ErrCodeUnexpected}
}
