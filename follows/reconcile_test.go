package follows

import (
	"reflect"
	"testing"
	"time"

	"github.com/followspot/followspot/twitchapi"
)

func ts(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func TestReconcileJoinsAllSources(t *testing.T) {
	edges := []twitchapi.FollowedEdge{
		{BroadcasterID: "1", BroadcasterLogin: "alpha", BroadcasterName: "Alpha", FollowedAt: ts(1)},
	}
	users := []twitchapi.User{
		{ID: "1", Login: "alpha", DisplayName: "Alpha", ProfileImageURL: "http://img/alpha.png"},
	}
	streams := []twitchapi.Stream{
		{UserID: "1", Title: "speedrun", ViewerCount: 400, GameID: "g1"},
	}
	games := []twitchapi.Game{
		{ID: "g1", Name: "Metroid", BoxArtURL: "http://img/metroid.jpg"},
	}

	got := Reconcile(edges, users, streams, games)
	want := []Channel{{
		ID:           "1",
		Name:         "Alpha",
		Login:        "alpha",
		IconURL:      "http://img/alpha.png",
		FollowedAt:   ts(1),
		IsLive:       true,
		Title:        "speedrun",
		ViewerCount:  400,
		GameTitle:    "Metroid",
		GameImageURL: "http://img/metroid.jpg",
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconcile = %+v, want %+v", got, want)
	}
}

func TestReconcileNeverDropsEdges(t *testing.T) {
	edges := []twitchapi.FollowedEdge{
		{BroadcasterID: "1", BroadcasterLogin: "gone", BroadcasterName: "Gone", FollowedAt: ts(1)},
		{BroadcasterID: "2", BroadcasterLogin: "here", BroadcasterName: "Here", FollowedAt: ts(2)},
	}
	users := []twitchapi.User{
		{ID: "2", ProfileImageURL: "http://img/here.png"},
	}

	got := Reconcile(edges, users, nil, nil)
	if len(got) != 2 {
		t.Fatalf("got %d channels, want 2 (edges without user records must survive)", len(got))
	}
	if got[0].IconURL != PlaceholderIconURL {
		t.Errorf("missing user should fall back to placeholder icon, got %q", got[0].IconURL)
	}
	if got[0].Name != "Gone" || got[0].Login != "gone" {
		t.Errorf("edge identity must be kept: %+v", got[0])
	}
	if got[1].IconURL != "http://img/here.png" {
		t.Errorf("present user icon lost: %q", got[1].IconURL)
	}
}

func TestReconcileOffline(t *testing.T) {
	edges := []twitchapi.FollowedEdge{
		{BroadcasterID: "1", BroadcasterLogin: "a", FollowedAt: ts(1)},
	}
	got := Reconcile(edges, nil, nil, nil)
	ch := got[0]
	if ch.IsLive || ch.Title != "" || ch.ViewerCount != 0 || ch.GameTitle != "" || ch.GameImageURL != "" {
		t.Errorf("offline channel must have zero live fields: %+v", ch)
	}
}

func TestReconcileMissingGameLeavesFieldsEmpty(t *testing.T) {
	edges := []twitchapi.FollowedEdge{
		{BroadcasterID: "1", BroadcasterLogin: "a", FollowedAt: ts(1)},
	}
	streams := []twitchapi.Stream{
		{UserID: "1", Title: "untitled category", GameID: "unknown"},
	}
	got := Reconcile(edges, nil, streams, nil)
	ch := got[0]
	if !ch.IsLive {
		t.Fatal("channel with stream must be live")
	}
	if ch.GameTitle != "" || ch.GameImageURL != "" {
		t.Errorf("unresolved game id must leave game fields empty: %+v", ch)
	}
}

func TestReconcileOrdering(t *testing.T) {
	edges := []twitchapi.FollowedEdge{
		{BroadcasterID: "offlineOld", FollowedAt: ts(1)},
		{BroadcasterID: "liveNew", FollowedAt: ts(9)},
		{BroadcasterID: "liveOld", FollowedAt: ts(2)},
		{BroadcasterID: "offlineNew", FollowedAt: ts(8)},
	}
	streams := []twitchapi.Stream{
		{UserID: "liveNew"},
		{UserID: "liveOld"},
	}
	got := Reconcile(edges, nil, streams, nil)
	order := make([]string, len(got))
	for i, ch := range got {
		order[i] = ch.ID
	}
	want := []string{"liveOld", "liveNew", "offlineOld", "offlineNew"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestReconcileDeterministic(t *testing.T) {
	edges := []twitchapi.FollowedEdge{
		{BroadcasterID: "1", FollowedAt: ts(3)},
		{BroadcasterID: "2", FollowedAt: ts(3)},
		{BroadcasterID: "3", FollowedAt: ts(1)},
	}
	streams := []twitchapi.Stream{{UserID: "2"}}
	first := Reconcile(edges, nil, streams, nil)
	second := Reconcile(edges, nil, streams, nil)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different outputs:\n%+v\n%+v", first, second)
	}
	// Equal followed-at keeps input order among offline channels.
	if first[1].ID != "3" || first[2].ID != "1" {
		t.Errorf("unexpected tie-break order: %+v", first)
	}
}

func TestDistinctGameIDs(t *testing.T) {
	streams := []twitchapi.Stream{
		{UserID: "1", GameID: "zz"},
		{UserID: "2", GameID: ""},
		{UserID: "3", GameID: "aa"},
		{UserID: "4", GameID: "zz"},
	}
	got := DistinctGameIDs(streams)
	want := []string{"aa", "zz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctGameIDs = %v, want %v", got, want)
	}
	if got := DistinctGameIDs(nil); got != nil {
		t.Errorf("DistinctGameIDs(nil) = %v, want nil", got)
	}
}

func TestLiveCount(t *testing.T) {
	channels := []Channel{{IsLive: true}, {IsLive: false}, {IsLive: true}}
	if got := LiveCount(channels); got != 2 {
		t.Errorf("LiveCount = %d, want 2", got)
	}
}

func TestCapLiveCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{-1, ""},
		{0, ""},
		{1, "1"},
		{42, "42"},
		{99, "99"},
		{100, "99+"},
		{1500, "99+"},
	}
	for _, tt := range tests {
		if got := CapLiveCount(tt.n); got != tt.want {
			t.Errorf("CapLiveCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
