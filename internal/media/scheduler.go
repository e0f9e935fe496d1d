// Package media drives the lifecycle of item media around the visible
// window: warm what is about to scroll in, pause video that scrolled out.
package media

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/audlabs/audfeed/internal/types"
)

// Hooks are the embedder's media callbacks. Any nil hook is skipped.
type Hooks struct {
	// Prefetch warms an item's media (cache fill, byte-range fetch).
	Prefetch func(ctx context.Context, it types.Item)
	// Play resumes a video that entered the visible window.
	Play func(id string)
	// Pause stops a video that left the visible window.
	Pause func(id string)
}

// Options tunes a Scheduler. The zero value prefetches 6 items ahead at
// up to 4 fetches per second.
type Options struct {
	Lookahead   int
	FetchesPerS float64
	Logger      zerolog.Logger
}

const (
	defaultLookahead = 6
	defaultFetchRate = 4.0
)

// Scheduler tracks the display list and the embedder-reported visible
// index window. Prefetches run once per item and are rate limited so a
// fast fling does not stampede the media host.
type Scheduler struct {
	mu         sync.Mutex
	hooks      Hooks
	items      []types.Item
	visible    map[string]bool
	prefetched map[string]bool
	lookahead  int
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// New builds a scheduler with the given hooks.
func New(hooks Hooks, opts Options) *Scheduler {
	if opts.Lookahead <= 0 {
		opts.Lookahead = defaultLookahead
	}
	if opts.FetchesPerS <= 0 {
		opts.FetchesPerS = defaultFetchRate
	}
	return &Scheduler{
		hooks:      hooks,
		visible:    make(map[string]bool),
		prefetched: make(map[string]bool),
		lookahead:  opts.Lookahead,
		limiter:    rate.NewLimiter(rate.Limit(opts.FetchesPerS), 1),
		log:        opts.Logger,
	}
}

// SetItems replaces the display list. Positions of already-tracked items
// may change after a removal; visibility state carries over by id.
func (s *Scheduler) SetItems(items []types.Item) {
	s.mu.Lock()
	s.items = make([]types.Item, len(items))
	copy(s.items, items)
	s.mu.Unlock()
}

// ViewportChanged reports that indices [first, last] are now on screen.
// Videos entering the window play, videos leaving it pause, and media for
// the next items below the window starts warming.
func (s *Scheduler) ViewportChanged(ctx context.Context, first, last int) {
	s.mu.Lock()
	nowVisible := make(map[string]bool, last-first+1)
	var entered, left []types.Item
	for i, it := range s.items {
		if i >= first && i <= last {
			nowVisible[it.ID] = true
			if !s.visible[it.ID] {
				entered = append(entered, it)
			}
		} else if s.visible[it.ID] {
			left = append(left, it)
		}
	}
	s.visible = nowVisible

	var warm []types.Item
	for i := first; i <= last+s.lookahead && i < len(s.items); i++ {
		if i < 0 {
			continue
		}
		it := s.items[i]
		if !s.prefetched[it.ID] {
			s.prefetched[it.ID] = true
			warm = append(warm, it)
		}
	}
	s.mu.Unlock()

	for _, it := range left {
		if it.MediaKind == "video" && s.hooks.Pause != nil {
			s.hooks.Pause(it.ID)
		}
	}
	for _, it := range entered {
		if it.MediaKind == "video" && s.hooks.Play != nil {
			s.hooks.Play(it.ID)
		}
	}
	if s.hooks.Prefetch != nil && len(warm) > 0 {
		go s.prefetch(ctx, warm)
	}
}

// MountAll is the fallback when the embedder cannot report a viewport:
// everything gets warmed, nothing is paused.
func (s *Scheduler) MountAll(ctx context.Context) {
	s.mu.Lock()
	var warm []types.Item
	for _, it := range s.items {
		if !s.prefetched[it.ID] {
			s.prefetched[it.ID] = true
			warm = append(warm, it)
		}
	}
	s.mu.Unlock()

	if s.hooks.Prefetch != nil && len(warm) > 0 {
		go s.prefetch(ctx, warm)
	}
}

// Forget drops an item's cached lifecycle state after removal.
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	delete(s.visible, id)
	delete(s.prefetched, id)
	s.mu.Unlock()
}

func (s *Scheduler) prefetch(ctx context.Context, items []types.Item) {
	for _, it := range items {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.hooks.Prefetch(ctx, it)
	}
}
