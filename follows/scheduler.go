package follows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/followspot/followspot/telemetry"
	"github.com/followspot/followspot/twitchapi"
)

// DefaultPollInterval is how often the scheduler re-enters a sync cycle.
const DefaultPollInterval = 60 * time.Second

// ErrUnavailable marks transient sync failures. The snapshot is left untouched
// and the next tick retries.
var ErrUnavailable = errors.New("follows: temporarily unavailable")

// ErrNeedsAuth is returned when no valid credential is available.
var ErrNeedsAuth = errors.New("follows: needs authentication")

// API is the subset of the Helix client the scheduler depends on.
type API interface {
	GetViewer(ctx context.Context) (twitchapi.User, error)
	GetFollowedEdges(ctx context.Context, viewerID string) ([]twitchapi.FollowedEdge, error)
	GetUsers(ctx context.Context, ids []string) ([]twitchapi.User, error)
	GetLiveStreams(ctx context.Context, ids []string) ([]twitchapi.Stream, error)
	GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, error)
	GetFollowerCount(ctx context.Context, channelID string) (int, error)
	RevokeToken(ctx context.Context)
}

// CredentialStore holds the viewer's access token.
type CredentialStore interface {
	GetToken(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// SnapshotStore persists the reconciled channel list between cycles. Save must
// be atomic: no partial write may ever be observable.
type SnapshotStore interface {
	Load(ctx context.Context) ([]Channel, error)
	Save(ctx context.Context, channels []Channel) error
}

// Notifier receives the side-effect signals raised after a successful cycle.
type Notifier interface {
	SnapshotUpdated()
	BadgeCountChanged(live int)
	NewLiveArrival()
}

// State is the scheduler lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateSyncing
	StateIdle
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateSyncing:
		return "syncing"
	case StateIdle:
		return "idle"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what callers of a sync observe: the reconciled channels, or a
// needs-authentication marker when no valid credential exists.
type Result struct {
	Channels  []Channel
	NeedsAuth bool
}

// Scheduler owns the polling cadence and is the sole error boundary of the
// pipeline. At most one sync cycle is in flight; concurrent triggers are
// coalesced into the running cycle's result.
type Scheduler struct {
	api      API
	creds    CredentialStore
	store    SnapshotStore
	notify   Notifier
	interval time.Duration

	group singleflight.Group

	mu       sync.Mutex
	state    State
	snapshot []Channel
	lastLive int
	haveLive bool
}

// NewScheduler wires a scheduler from its collaborators. A zero interval
// selects DefaultPollInterval.
func NewScheduler(api API, creds CredentialStore, store SnapshotStore, notify Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		api:      api,
		creds:    creds,
		store:    store,
		notify:   notify,
		interval: interval,
		state:    StateUnauthenticated,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run restores the persisted snapshot, performs an initial sync and then
// re-enters a cycle on every tick until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if snap, err := s.store.Load(ctx); err != nil {
		slog.Warn("snapshot restore failed", slog.Any("err", err))
	} else {
		s.mu.Lock()
		s.snapshot = snap
		s.mu.Unlock()
	}

	// First update always reports the badge, even when nothing is live.
	res, err := s.Sync(ctx)
	if err != nil {
		slog.Warn("initial sync failed", slog.Any("err", err))
		s.notify.BadgeCountChanged(0)
	} else if res.NeedsAuth {
		s.notify.BadgeCountChanged(0)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("sync scheduler started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			slog.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil {
				slog.Warn("scheduled sync failed", slog.Any("err", err))
			}
		}
	}
}

// Sync runs one reconciliation cycle, or joins the cycle already in flight.
func (s *Scheduler) Sync(ctx context.Context) (Result, error) {
	v, err, _ := s.group.Do("sync", func() (any, error) {
		return s.syncOnce(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// syncOnce is one complete fetch+join+sort+persist pass. It classifies auth
// failures (credential invalidation) and treats everything else as transient.
func (s *Scheduler) syncOnce(ctx context.Context) (Result, error) {
	token, err := s.creds.GetToken(ctx)
	if err != nil {
		s.setState(StateFailed)
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if token == "" {
		s.setState(StateUnauthenticated)
		return Result{NeedsAuth: true}, nil
	}

	s.setState(StateSyncing)
	telemetry.SyncCycles.Inc()
	ctx, span := telemetry.StartSpan(ctx, "follows", "sync-cycle")
	defer span.End()
	start := time.Now()

	channels, err := s.fetchAndReconcile(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		if twitchapi.IsAuthError(err) {
			telemetry.AuthFailures.Inc()
			if cerr := s.creds.ClearToken(ctx); cerr != nil {
				slog.Warn("credential invalidation failed", slog.Any("err", cerr))
			}
			s.setState(StateUnauthenticated)
			slog.Info("credential rejected, authentication required")
			return Result{NeedsAuth: true}, nil
		}
		telemetry.SyncFailures.Inc()
		s.setState(StateFailed)
		slog.Warn("sync cycle failed", slog.Any("err", err))
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if err := s.publish(ctx, channels); err != nil {
		telemetry.RecordError(span, err)
		telemetry.SyncFailures.Inc()
		s.setState(StateFailed)
		slog.Warn("snapshot persist failed", slog.Any("err", err))
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s.setState(StateIdle)
	telemetry.SetSpanSuccess(span)
	telemetry.SyncDuration.Observe(time.Since(start).Seconds())
	return Result{Channels: channels}, nil
}

// fetchAndReconcile performs the fetch fan-out for one cycle: viewer, edges,
// then users and streams in parallel (both depend only on the edge ids), then
// games for the distinct ids the streams reference.
func (s *Scheduler) fetchAndReconcile(ctx context.Context) ([]Channel, error) {
	viewer, err := s.api.GetViewer(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.api.GetFollowedEdges(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.BroadcasterID
	}

	var users []twitchapi.User
	var streams []twitchapi.Stream
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.api.GetUsers(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		streams, err = s.api.GetLiveStreams(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	games, err := s.api.GetGames(ctx, DistinctGameIDs(streams))
	if err != nil {
		return nil, err
	}
	return Reconcile(edges, users, streams, games), nil
}

// publish persists the new snapshot, replaces the in-memory one atomically and
// raises the change signals: snapshot-updated when anything differs, badge
// count on change (and on the first cycle), new-live-arrival when a channel is
// live now that was not live in a non-empty previous snapshot. A first-ever
// sync never raises the arrival signal.
func (s *Scheduler) publish(ctx context.Context, channels []Channel) error {
	s.mu.Lock()
	prev := s.snapshot
	s.mu.Unlock()

	newArrival := false
	if len(prev) > 0 {
		prevLive := make(map[string]struct{}, len(prev))
		for _, ch := range prev {
			if ch.IsLive {
				prevLive[ch.ID] = struct{}{}
			}
		}
		for _, ch := range channels {
			if !ch.IsLive {
				continue
			}
			if _, ok := prevLive[ch.ID]; !ok {
				newArrival = true
				break
			}
		}
	}
	changed := !channelsEqual(prev, channels)

	if err := s.store.Save(ctx, channels); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = channels
	s.mu.Unlock()

	live := LiveCount(channels)
	telemetry.LiveChannels.Set(float64(live))
	telemetry.FollowedChannels.Set(float64(len(channels)))

	if changed {
		s.notify.SnapshotUpdated()
	}
	s.mu.Lock()
	badgeChanged := !s.haveLive || live != s.lastLive
	s.haveLive = true
	s.lastLive = live
	s.mu.Unlock()
	if badgeChanged {
		s.notify.BadgeCountChanged(live)
	}
	if newArrival {
		telemetry.NewLiveArrivals.Inc()
		s.notify.NewLiveArrival()
	}
	return nil
}

// Streams returns the current snapshot, syncing first when none exists yet.
func (s *Scheduler) Streams(ctx context.Context) (Result, error) {
	s.mu.Lock()
	snap := s.snapshot
	s.mu.Unlock()
	if len(snap) > 0 {
		return Result{Channels: snap}, nil
	}
	return s.Sync(ctx)
}

// Viewer returns the authenticated user's profile enriched with the follower
// count. A follower-count failure degrades to zero rather than failing the
// whole lookup.
func (s *Scheduler) Viewer(ctx context.Context) (twitchapi.User, error) {
	token, err := s.creds.GetToken(ctx)
	if err != nil {
		return twitchapi.User{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if token == "" {
		return twitchapi.User{}, ErrNeedsAuth
	}
	u, err := s.api.GetViewer(ctx)
	if err != nil {
		if twitchapi.IsAuthError(err) {
			if cerr := s.creds.ClearToken(ctx); cerr != nil {
				slog.Warn("credential invalidation failed", slog.Any("err", cerr))
			}
			s.setState(StateUnauthenticated)
			return twitchapi.User{}, ErrNeedsAuth
		}
		return twitchapi.User{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if n, err := s.api.GetFollowerCount(ctx, u.ID); err != nil {
		slog.Warn("follower count lookup failed", slog.Any("err", err))
	} else {
		u.Followers = n
	}
	return u, nil
}

// Login stores a freshly obtained token and kicks off an immediate sync. The
// login itself succeeds even when that first sync does not.
func (s *Scheduler) Login(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("follows: empty token")
	}
	if err := s.creds.SetToken(ctx, token); err != nil {
		return err
	}
	if _, err := s.Sync(ctx); err != nil {
		slog.Warn("post-login sync failed", slog.Any("err", err))
	}
	return nil
}

// Logout revokes the token best-effort, clears the credential and the
// snapshot, and resets the badge.
func (s *Scheduler) Logout(ctx context.Context) error {
	s.api.RevokeToken(ctx)
	if err := s.creds.ClearToken(ctx); err != nil {
		return err
	}
	if err := s.store.Save(ctx, nil); err != nil {
		slog.Warn("snapshot clear failed", slog.Any("err", err))
	}
	s.mu.Lock()
	s.snapshot = nil
	s.lastLive = 0
	s.haveLive = false
	s.state = StateUnauthenticated
	s.mu.Unlock()
	s.notify.BadgeCountChanged(0)
	s.notify.SnapshotUpdated()
	return nil
}
