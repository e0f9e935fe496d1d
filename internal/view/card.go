// Package view assembles render-ready card snapshots. Builders here are
// pure: they read reconciled state and produce a value the embedder can
// paint without touching the engine again.
package view

import (
	"time"

	"github.com/audlabs/audfeed/internal/types"
)

// LabelCount pairs a vote label with its tally. Cards carry a slice
// rather than a map so every render shows the labels in the same order.
type LabelCount struct {
	Label string
	Count int
}

// Card is one item ready for display: static item fields merged with the
// current reconciled interaction state.
type Card struct {
	ID         string
	Caption    string
	AuthorName string
	AvatarURL  string
	BG         string
	MediaURL   string
	MediaKind  string
	CreatedAt  time.Time

	Liked    bool
	Likes    int
	Votes    []LabelCount
	MyChoice string
	Total    int
	Mine     bool
}

// Build merges an item with its interaction state. Counts for labels the
// server never mentioned render as zero, and unknown labels in counts are
// dropped rather than shown.
func Build(it types.Item, liked bool, likes int, counts map[string]int, my string, mine bool) Card {
	c := Card{
		ID:         it.ID,
		Caption:    it.Caption,
		AuthorName: it.User.DisplayName,
		AvatarURL:  it.User.AvatarURL,
		BG:         it.BG,
		MediaURL:   it.MediaURL,
		MediaKind:  it.MediaKind,
		CreatedAt:  it.CreatedAt,
		Liked:      liked,
		Likes:      likes,
		MyChoice:   my,
		Mine:       mine,
	}
	c.Votes = make([]LabelCount, 0, len(types.Labels))
	for _, label := range types.Labels {
		n := counts[label]
		if n < 0 {
			n = 0
		}
		c.Votes = append(c.Votes, LabelCount{Label: label, Count: n})
		c.Total += n
	}
	return c
}
