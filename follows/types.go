package follows

import (
	"strconv"
	"time"
)

// PlaceholderIconURL substitutes the avatar for edges whose user record is
// missing (deleted or suspended accounts).
const PlaceholderIconURL = "./assets/no-avatar.png"

// Channel is the denormalized per-follow view the panel renders. A fresh
// ordered sequence is produced every sync cycle; live-derived fields are never
// carried over from the previous snapshot.
type Channel struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Login        string    `json:"login"`
	IconURL      string    `json:"iconUrl"`
	FollowedAt   time.Time `json:"followed_at"`
	IsLive       bool      `json:"isLive"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewerCount"`
	GameTitle    string    `json:"gameTitle"`
	GameImageURL string    `json:"gameImageUrl"`
}

func (c Channel) equal(o Channel) bool {
	return c.ID == o.ID &&
		c.Name == o.Name &&
		c.Login == o.Login &&
		c.IconURL == o.IconURL &&
		c.FollowedAt.Equal(o.FollowedAt) &&
		c.IsLive == o.IsLive &&
		c.Title == o.Title &&
		c.ViewerCount == o.ViewerCount &&
		c.GameTitle == o.GameTitle &&
		c.GameImageURL == o.GameImageURL
}

// channelsEqual compares two snapshots element-wise, order included.
func channelsEqual(a, b []Channel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

// LiveCount returns the number of live channels in a snapshot.
func LiveCount(channels []Channel) int {
	n := 0
	for _, ch := range channels {
		if ch.IsLive {
			n++
		}
	}
	return n
}

// CapLiveCount renders a live count as badge text: empty at zero, "99+" above
// ninety-nine.
func CapLiveCount(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}
