// Package feed holds the paginated item list backing the grid view.
package feed

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/audlabs/audfeed/internal/types"
)

// ErrBusy is returned when a page fetch is already in flight. Rapid
// scroll triggers collapse into the one outstanding request.
var ErrBusy = errors.New("feed: page fetch already in flight")

// ErrEnd is returned once the feed is exhausted.
var ErrEnd = errors.New("feed: no more pages")

// Source fetches one page after cursor. An empty cursor means the start
// of the feed.
type Source func(ctx context.Context, limit int, cursor string) (types.FeedPage, error)

// Options tunes a Pager. The zero value gives a 30-item page size with
// per-page shuffling on.
type Options struct {
	Limit     int
	NoShuffle bool
	Seed      int64 // deterministic shuffle order for tests; 0 seeds randomly
	Logger    zerolog.Logger
}

const defaultLimit = 30

// Pager accumulates feed pages into a stable, duplicate-free item list.
// Each fetched page is shuffled before it is appended, so two sessions
// browsing at the same time see different orders, but items already shown
// never move.
type Pager struct {
	mu     sync.Mutex
	source Source
	limit  int
	log    zerolog.Logger

	shuffle func([]types.Item)

	items  []types.Item
	index  map[string]int
	cursor string
	busy   bool
	end    bool
}

// New builds a pager over src.
func New(src Source, opts Options) *Pager {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	p := &Pager{
		source: src,
		limit:  opts.Limit,
		log:    opts.Logger,
		index:  make(map[string]int),
	}
	if opts.NoShuffle {
		p.shuffle = func([]types.Item) {}
	} else {
		rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // presentation order, not security
		if opts.Seed == 0 {
			rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec
		}
		p.shuffle = func(page []types.Item) {
			rng.Shuffle(len(page), func(i, j int) { page[i], page[j] = page[j], page[i] })
		}
	}
	return p
}

// LoadMore fetches and appends the next page, returning the number of new
// items. Concurrent calls beyond the first fail fast with ErrBusy; a
// transport failure releases the guard so the next scroll retries, and
// only a successful short or empty page marks the feed ended.
func (p *Pager) LoadMore(ctx context.Context) (int, error) {
	p.mu.Lock()
	if p.end {
		p.mu.Unlock()
		return 0, ErrEnd
	}
	if p.busy {
		p.mu.Unlock()
		return 0, ErrBusy
	}
	p.busy = true
	cursor := p.cursor
	p.mu.Unlock()

	page, err := p.source(ctx, p.limit, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = false
	if err != nil {
		// Transient failure: not the end of the feed.
		return 0, err
	}

	fresh := make([]types.Item, 0, len(page.Items))
	for _, it := range page.Items {
		if it.ID == "" {
			continue
		}
		if _, dup := p.index[it.ID]; dup {
			continue
		}
		fresh = append(fresh, it)
	}
	p.shuffle(fresh)
	for _, it := range fresh {
		p.index[it.ID] = len(p.items)
		p.items = append(p.items, it)
	}

	p.cursor = page.NextCursor
	if page.NextCursor == "" || len(page.Items) == 0 {
		p.end = true
	}
	if p.log.GetLevel() <= zerolog.DebugLevel {
		p.log.Debug().Int("added", len(fresh)).Int("total", len(p.items)).Bool("end", p.end).Msg("feed: page appended")
	}
	return len(fresh), nil
}

// Items returns a copy of the accumulated list in display order.
func (p *Pager) Items() []types.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Item, len(p.items))
	copy(out, p.items)
	return out
}

// Get looks an item up by id.
func (p *Pager) Get(id string) (types.Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[id]
	if !ok {
		return types.Item{}, false
	}
	return p.items[i], true
}

// Len reports how many items are loaded.
func (p *Pager) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// AtEnd reports whether the feed is exhausted.
func (p *Pager) AtEnd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end
}

// Upsert replaces a loaded item in place, keeping its display position.
// Unknown ids are ignored so late enrichment never resurrects a removed
// item.
func (p *Pager) Upsert(it types.Item) bool {
	if it.ID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[it.ID]
	if !ok {
		return false
	}
	p.items[i] = it
	return true
}

// Remove drops an item and reindexes the tail.
func (p *Pager) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[id]
	if !ok {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	delete(p.index, id)
	for j := i; j < len(p.items); j++ {
		p.index[p.items[j].ID] = j
	}
	return true
}

// Reset clears the list so a changed filter starts from the top.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = nil
	p.index = make(map[string]int)
	p.cursor = ""
	p.end = false
}
