package transport

import (
	"encoding/json"
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/zeebo/xxh3"

	"github.com/audlabs/audfeed/internal/types"
)

// DefaultDedupWindow is how long an event fingerprint suppresses
// duplicates. Long enough to cover socket-then-bus double delivery of the
// same event, short enough that a genuine repeat (like, unlike, like) is
// never swallowed.
const DefaultDedupWindow = 3 * time.Second

// Deduper suppresses re-delivery of the same event through multiple
// channels. An event arriving over the socket gets relayed onto the bus
// for sessions without a socket; the session that relayed it, and any
// session holding its own socket, would otherwise process it twice.
type Deduper struct {
	seen *cache.Cache
}

// NewDeduper builds a deduper with the given suppression window.
// A window of 0 uses DefaultDedupWindow.
func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduper{seen: cache.New(window, 2*window)}
}

// Seen records the event's fingerprint and reports whether it was already
// present. The first delivery returns false, later ones true until the
// window lapses.
func (d *Deduper) Seen(ev types.Event) bool {
	tag := fingerprint(ev)
	if _, ok := d.seen.Get(tag); ok {
		duplicatesTotal.Inc()
		return true
	}
	d.seen.SetDefault(tag, struct{}{})
	return false
}

// fingerprint hashes the event type, item id, and full payload so that two
// distinct updates for the same item (different counts) never collide.
func fingerprint(ev types.Event) string {
	payload, _ := json.Marshal(ev.Data)
	h := xxh3.HashString(string(ev.Type) + "|" + ev.Data.ID + "|" + string(payload))
	return strconv.FormatUint(h, 16)
}
