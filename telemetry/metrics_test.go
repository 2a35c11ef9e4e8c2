package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register
	if SyncCycles == nil || SyncDuration == nil || LiveChannels == nil {
		t.Fatal("metrics not initialized")
	}
	SyncCycles.Inc()
	LiveChannels.Set(3)
}

func TestTimeFunc(t *testing.T) {
	Init()
	d := TimeFunc(SyncDuration, func() { time.Sleep(5 * time.Millisecond) })
	if d < 5*time.Millisecond {
		t.Errorf("duration = %v, want >= 5ms", d)
	}
	// nil observer is allowed
	if d := TimeFunc(nil, func() {}); d < 0 {
		t.Errorf("duration = %v", d)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation on bare context = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q", got)
	}
	if l := LoggerWithCorr(ctx); l == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
