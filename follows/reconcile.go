// Package follows turns the raw Helix resources (follow edges, users, live
// streams, games) into one consistent ordered channel list and owns the
// polling loop that keeps it fresh.
package follows

import (
	"sort"

	"github.com/followspot/followspot/twitchapi"
)

// Reconcile joins the four independently fetched record sets into one
// denormalized view per followed channel. Edges are never dropped: a missing
// user record degrades to the edge's own login/name and a placeholder icon, a
// missing stream record means offline, a missing game record leaves the game
// fields empty. Output ordering is live-before-offline, then followed-at
// ascending, stable otherwise.
func Reconcile(edges []twitchapi.FollowedEdge, users []twitchapi.User, streams []twitchapi.Stream, games []twitchapi.Game) []Channel {
	usersByID := make(map[string]twitchapi.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	streamsByUser := make(map[string]twitchapi.Stream, len(streams))
	for _, s := range streams {
		streamsByUser[s.UserID] = s
	}
	gamesByID := make(map[string]twitchapi.Game, len(games))
	for _, g := range games {
		gamesByID[g.ID] = g
	}

	out := make([]Channel, 0, len(edges))
	for _, edge := range edges {
		ch := Channel{
			ID:         edge.BroadcasterID,
			Name:       edge.BroadcasterName,
			Login:      edge.BroadcasterLogin,
			FollowedAt: edge.FollowedAt,
			IconURL:    PlaceholderIconURL,
		}
		if u, ok := usersByID[edge.BroadcasterID]; ok {
			ch.IconURL = u.ProfileImageURL
		}
		if s, ok := streamsByUser[edge.BroadcasterID]; ok {
			ch.IsLive = true
			ch.Title = s.Title
			ch.ViewerCount = s.ViewerCount
			if s.GameID != "" {
				if g, ok := gamesByID[s.GameID]; ok {
					ch.GameTitle = g.Name
					ch.GameImageURL = g.BoxArtURL
				}
			}
		}
		out = append(out, ch)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsLive != out[j].IsLive {
			return out[i].IsLive
		}
		return out[i].FollowedAt.Before(out[j].FollowedAt)
	})
	return out
}

// DistinctGameIDs returns the sorted set of non-empty game ids referenced by
// the given streams. Sorting makes the derivation independent of stream order,
// so identical inputs always produce identical batch queries.
func DistinctGameIDs(streams []twitchapi.Stream) []string {
	seen := make(map[string]struct{}, len(streams))
	var ids []string
	for _, s := range streams {
		if s.GameID == "" {
			continue
		}
		if _, ok := seen[s.GameID]; ok {
			continue
		}
		seen[s.GameID] = struct{}{}
		ids = append(ids, s.GameID)
	}
	sort.Strings(ids)
	return ids
}
