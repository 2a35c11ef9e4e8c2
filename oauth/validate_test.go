package oauth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/followspot/followspot/twitchapi"
)

type fakeValidator struct {
	err   error
	calls int
}

func (f *fakeValidator) ValidateToken(context.Context) error {
	f.calls++
	return f.err
}

type fakeCreds struct {
	token string
}

func (f *fakeCreds) GetToken(context.Context) (string, error) { return f.token, nil }

func (f *fakeCreds) SetToken(_ context.Context, t string) error { f.token = t; return nil }

func (f *fakeCreds) ClearToken(context.Context) error { f.token = ""; return nil }

func TestCheckTokenSkipsWhenAbsent(t *testing.T) {
	v := &fakeValidator{}
	if err := CheckToken(context.Background(), v, &fakeCreds{}); err != nil {
		t.Fatalf("CheckToken: %v", err)
	}
	if v.calls != 0 {
		t.Errorf("validate called %d times without a token", v.calls)
	}
}

func TestCheckTokenValid(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	if err := CheckToken(context.Background(), &fakeValidator{}, creds); err != nil {
		t.Fatalf("CheckToken: %v", err)
	}
	if creds.token != "tok" {
		t.Errorf("valid token was cleared")
	}
}

func TestCheckTokenClearsOnRejection(t *testing.T) {
	creds := &fakeCreds{token: "stale"}
	v := &fakeValidator{err: &twitchapi.TransportError{Status: http.StatusUnauthorized}}
	if err := CheckToken(context.Background(), v, creds); err != nil {
		t.Fatalf("CheckToken: %v (rejection is handled, not returned)", err)
	}
	if creds.token != "" {
		t.Errorf("rejected token not cleared: %q", creds.token)
	}
}

func TestCheckTokenKeepsOnTransientFailure(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	v := &fakeValidator{err: errors.New("connection refused")}
	if err := CheckToken(context.Background(), v, creds); err == nil {
		t.Fatal("expected transient error to surface")
	}
	if creds.token != "tok" {
		t.Errorf("token cleared on transient failure")
	}
}
