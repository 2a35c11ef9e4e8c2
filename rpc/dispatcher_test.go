package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/followspot/followspot/follows"
	"github.com/followspot/followspot/twitchapi"
)

type fakeService struct {
	streamsRes follows.Result
	streamsErr error
	syncRes    follows.Result
	syncErr    error
	viewer     twitchapi.User
	viewerErr  error
	loginErr   error
	logoutErr  error

	loginToken string
	logouts    int
}

func (f *fakeService) Streams(context.Context) (follows.Result, error) {
	return f.streamsRes, f.streamsErr
}

func (f *fakeService) Sync(context.Context) (follows.Result, error) {
	return f.syncRes, f.syncErr
}

func (f *fakeService) Viewer(context.Context) (twitchapi.User, error) {
	return f.viewer, f.viewerErr
}

func (f *fakeService) Login(_ context.Context, token string) error {
	f.loginToken = token
	return f.loginErr
}

func (f *fakeService) Logout(context.Context) error {
	f.logouts++
	return f.logoutErr
}

func startDispatcher(t *testing.T, svc Service) *Broker {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := NewBroker(4)
	d := &Dispatcher{Broker: b, Service: svc}
	go d.Run(ctx)
	return b
}

func TestDispatchGetStreams(t *testing.T) {
	svc := &fakeService{streamsRes: follows.Result{Channels: []follows.Channel{{ID: "1", Name: "Alpha"}}}}
	b := startDispatcher(t, svc)

	data, err := b.Call(context.Background(), CommandGetStreams, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var info StreamsInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(info.Channels) != 1 || info.Channels[0].ID != "1" {
		t.Errorf("channels = %+v", info.Channels)
	}
}

func TestDispatchEmptyStreamsIsNotNull(t *testing.T) {
	svc := &fakeService{}
	b := startDispatcher(t, svc)

	data, err := b.Call(context.Background(), CommandGetStreams, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["channels"]) != "[]" {
		t.Errorf("channels = %s, want []", raw["channels"])
	}
}

func TestDispatchNeedsAuth(t *testing.T) {
	svc := &fakeService{streamsRes: follows.Result{NeedsAuth: true}}
	b := startDispatcher(t, svc)

	data, err := b.Call(context.Background(), CommandGetStreams, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var na NeedsAuth
	if err := json.Unmarshal(data, &na); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !na.NeedsAuthentication {
		t.Error("expected needsAuthentication payload")
	}
}

func TestDispatchRefreshUsesSync(t *testing.T) {
	svc := &fakeService{syncRes: follows.Result{Channels: []follows.Channel{{ID: "7"}}}}
	b := startDispatcher(t, svc)

	data, err := b.Call(context.Background(), CommandRefresh, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var info StreamsInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(info.Channels) != 1 || info.Channels[0].ID != "7" {
		t.Errorf("channels = %+v", info.Channels)
	}
}

func TestDispatchErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		svc      *fakeService
		cmd      Command
		payload  json.RawMessage
		wantCode string
	}{
		{
			name:     "unavailable",
			svc:      &fakeService{streamsErr: follows.ErrUnavailable},
			cmd:      CommandGetStreams,
			wantCode: ErrCodeUnavailable,
		},
		{
			name:     "wrapped unavailable",
			svc:      &fakeService{syncErr: errors.Join(follows.ErrUnavailable, errors.New("db down"))},
			cmd:      CommandRefresh,
			wantCode: ErrCodeUnavailable,
		},
		{
			name:     "unexpected",
			svc:      &fakeService{streamsErr: errors.New("boom")},
			cmd:      CommandGetStreams,
			wantCode: ErrCodeUnexpected,
		},
		{
			name:     "login without token",
			svc:      &fakeService{},
			cmd:      CommandLogin,
			payload:  json.RawMessage(`{}`),
			wantCode: ErrCodeBadRequest,
		},
		{
			name:     "login malformed payload",
			svc:      &fakeService{},
			cmd:      CommandLogin,
			payload:  json.RawMessage(`{broken`),
			wantCode: ErrCodeBadRequest,
		},
		{
			name:     "unknown command",
			svc:      &fakeService{},
			cmd:      Command("selfDestruct"),
			wantCode: ErrCodeBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := startDispatcher(t, tt.svc)
			_, err := b.Call(context.Background(), tt.cmd, tt.payload)
			var rerr *RemoteError
			if !errors.As(err, &rerr) || rerr.Code != tt.wantCode {
				t.Fatalf("err = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestDispatchGetUser(t *testing.T) {
	svc := &fakeService{viewer: twitchapi.User{ID: "v1", Login: "viewer", Followers: 5}}
	b := startDispatcher(t, svc)

	data, err := b.Call(context.Background(), CommandGetUser, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var u twitchapi.User
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.ID != "v1" || u.Followers != 5 {
		t.Errorf("user = %+v", u)
	}
}

func TestDispatchGetUserNeedsAuth(t *testing.T) {
	svc := &fakeService{viewerErr: follows.ErrNeedsAuth}
	b := startDispatcher(t, svc)

	data, err := b.Call(context.Background(), CommandGetUser, nil)
	if err != nil {
		t.Fatalf("Call: %v (needs-auth is data, not an error)", err)
	}
	var na NeedsAuth
	if err := json.Unmarshal(data, &na); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !na.NeedsAuthentication {
		t.Error("expected needsAuthentication payload")
	}
}

func TestDispatchLoginLogout(t *testing.T) {
	svc := &fakeService{}
	b := startDispatcher(t, svc)

	if _, err := b.Call(context.Background(), CommandLogin, json.RawMessage(`{"token":"abc"}`)); err != nil {
		t.Fatalf("login: %v", err)
	}
	if svc.loginToken != "abc" {
		t.Errorf("login token = %q", svc.loginToken)
	}
	if _, err := b.Call(context.Background(), CommandLogout, nil); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if svc.logouts != 1 {
		t.Errorf("logouts = %d", svc.logouts)
	}
}
