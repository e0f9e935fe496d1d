package audfeed

import (
	"github.com/audlabs/audfeed/internal/types"
	"github.com/audlabs/audfeed/internal/view"
)

// Public type aliases so embedders can import only the audfeed package.
type (
	// Domain entities
	Item     = types.Item
	Author   = types.Author
	FeedPage = types.FeedPage

	// Events
	Event     = types.Event
	EventType = types.EventType
	Snapshot  = types.Snapshot

	// Render-ready state
	Card       = view.Card
	LabelCount = view.LabelCount
)

// Labels is the canonical vote label set in display order.
var Labels = types.Labels
