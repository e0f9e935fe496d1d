package types

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// Author is the account that submitted an item. Fields may be partially
// populated on feed pages; the identity resolver enriches them lazily from
// the item detail endpoint.
type Author struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Item is one user-submitted labeled post.
//
// Liked/Likes are denormalized convenience copies sent by the server; the
// authoritative per-session values live in the interaction store, keyed by ID.
type Item struct {
	ID        string    `json:"id"`
	NS        string    `json:"ns,omitempty"`
	User      Author    `json:"user,omitempty"`
	Label     string    `json:"label,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	BG        string    `json:"bg,omitempty"`

	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaKind string `json:"mediaKind,omitempty"` // "image" or "video"

	Liked *bool `json:"liked,omitempty"`
	Likes *int  `json:"likes,omitempty"`
	Mine  *bool `json:"mine,omitempty"`
}

// FeedPage is one page of the public feed.
type FeedPage struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Labels is the fixed label set. Items carry exactly one; votes choose one.
var Labels = []string{"aww", "cool", "lol", "wow"}

// IsLabel reports whether s is a member of the fixed label set.
func IsLabel(s string) bool {
	for _, l := range Labels {
		if l == s {
			return true
		}
	}
	return false
}
