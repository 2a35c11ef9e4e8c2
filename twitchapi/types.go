package twitchapi

import "time"

// User is a Helix user record. Followers is not part of the wire format; it is
// filled in separately from the followers endpoint for the viewer profile.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
	Followers       int    `json:"followers,omitempty"`
}

// FollowedEdge is one follow relationship from the channels/followed endpoint.
type FollowedEdge struct {
	BroadcasterID    string    `json:"broadcaster_id"`
	BroadcasterLogin string    `json:"broadcaster_login"`
	BroadcasterName  string    `json:"broadcaster_name"`
	FollowedAt       time.Time `json:"followed_at"`
}

// Stream is a live broadcast. Absence of a stream for a user id means offline.
type Stream struct {
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	GameID      string    `json:"game_id"`
	StartedAt   time.Time `json:"started_at"`
}

// Game is a category record, looked up only for ids referenced by live streams.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// follower is the minimal shape of a channels/followers entry. Only the
// envelope total is consumed.
type follower struct {
	UserID string `json:"user_id"`
}
