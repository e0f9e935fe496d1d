// Package audfeed is the headless feed engine: it pages the public feed,
// applies like and vote clicks optimistically, reconciles server pushes
// and sibling-session broadcasts into one consistent per-item state, and
// hands the embedder render-ready cards.
package audfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/audlabs/audfeed/internal/api"
	"github.com/audlabs/audfeed/internal/feed"
	"github.com/audlabs/audfeed/internal/identity"
	"github.com/audlabs/audfeed/internal/job"
	"github.com/audlabs/audfeed/internal/media"
	"github.com/audlabs/audfeed/internal/shardqueue"
	"github.com/audlabs/audfeed/internal/store"
	"github.com/audlabs/audfeed/internal/transport"
	"github.com/audlabs/audfeed/internal/types"
	"github.com/audlabs/audfeed/internal/view"
)

const defaultRefreshRate = 0.5 // modal snapshot refetches per second

// Client is one session of the feed engine. A browser tab, a TUI window,
// and a test fixture are all sessions; sessions sharing a bus converge on
// the same interaction state.
type Client struct {
	baseURL string
	ns      string
	origin  string
	http    *http.Client
	log     zerolog.Logger

	exec     executor
	store    *store.Store
	pager    *feed.Pager
	adapter  *transport.Adapter
	resolver *identity.Resolver
	media    *media.Scheduler
	refresh  *rate.Limiter

	// construction knobs, consumed by New
	socketURL   string
	rdb         *redis.Client
	bus         transport.Bus
	stickiness  time.Duration
	dedupWindow time.Duration
	statePath   string
	userID      string
	email       string
	labelGate   func(string) bool
	pageSize    int
	noShuffle   bool
	mediaHooks  media.Hooks
	refreshRate float64

	mu    sync.RWMutex
	label string // active feed filter, empty means all
	modal string // item id open in the detail view, empty means none

	runCtx     context.Context
	cancel     context.CancelFunc
	spawnMu    sync.Mutex
	wg         sync.WaitGroup
	closedOnce uint32
}

// New constructs a Client for the given API origin and account namespace.
// Additional options can be provided via functional arguments.
func New(baseURL, ns string, opts ...Option) *Client {
	if baseURL == "" {
		panic("baseURL cannot be empty")
	}
	if ns == "" {
		panic("ns cannot be empty")
	}

	c := &Client{
		baseURL:     baseURL,
		ns:          ns,
		origin:      uuid.NewString(),
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         zerolog.Nop(),
		refreshRate: defaultRefreshRate,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			panic(err)
		}
	}
	if c.exec == nil {
		c.exec = newDefaultExecutor()
	}

	c.wrapTransportWithCSRF()

	c.store = store.New(store.Options{
		Stickiness: c.stickiness,
		Gate:       c.labelGate,
		Logger:     c.log,
	})
	c.pager = feed.New(c.fetchPage, feed.Options{
		Limit:     c.pageSize,
		NoShuffle: c.noShuffle,
		Logger:    c.log,
	})
	c.resolver = identity.NewResolver(c.userID, c.email, c.fetchItem, c.log)
	c.media = media.New(c.mediaHooks, media.Options{Logger: c.log})
	c.refresh = rate.NewLimiter(rate.Limit(c.refreshRate), 1)

	if c.bus == nil {
		if c.rdb != nil {
			c.bus = transport.NewRedisBus(c.rdb, c.ns, c.log)
		} else {
			c.bus = transport.NewLocalBus()
		}
	}
	var socket *transport.Socket
	if c.socketURL != "" {
		socket = transport.NewSocket(c.socketURL, c.log)
	}
	c.adapter = transport.NewAdapter(transport.AdapterConfig{
		Socket:      socket,
		Bus:         c.bus,
		Origin:      c.origin,
		DedupWindow: c.dedupWindow,
		Logger:      c.log,
	})

	return c
}

// wrapTransportWithCSRF wraps the HTTP client's transport so mutating
// requests carry the session's CSRF token, refreshed once on 403.
func (c *Client) wrapTransportWithCSRF() {
	base := c.http.Transport
	if base == nil {
		base = defaultBaseTransport()
	}
	c.http.Transport = &api.CSRFTransport{
		Base:     base,
		TokenURL: c.baseURL + "/api/csrf",
	}
}

func defaultBaseTransport() http.RoundTripper { return http.DefaultTransport }

// newDefaultExecutor constructs the shardqueue executor with sane defaults.
func newDefaultExecutor() *shardqueue.ShardExecutor {
	cfg := shardqueue.Config{Shards: 4, QueueSize: 1000}
	return shardqueue.NewShardExecutor(cfg)
}

// Start connects the event plumbing: bus subscription, push socket (when
// configured), and the state file (when configured). It returns once the
// session is live; delivery runs in the background until ctx is canceled
// or Close is called.
func (c *Client) Start(ctx context.Context) error {
	if atomic.LoadUint32(&c.closedOnce) == 1 {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx = runCtx
	c.cancel = cancel

	if err := c.adapter.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start transport: %w", err)
	}

	if c.statePath != "" {
		if err := c.store.LoadFile(c.statePath); err != nil && !os.IsNotExist(err) {
			c.log.Debug().Err(err).Str("path", c.statePath).Msg("state file not loaded")
		}
	}

	c.spawn(func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-c.adapter.Events():
				if !ok {
					return
				}
				c.handleEvent(ev)
			}
		}
	})
	return nil
}

// spawn runs fn on a tracked goroutine unless the client is closed. The
// lock orders it against Close, so the wait group can never grow once
// Close has started waiting on it.
func (c *Client) spawn(fn func()) {
	c.spawnMu.Lock()
	defer c.spawnMu.Unlock()
	if c.closed() {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Close stops the background executor and event loop, then persists state
// if a state path is configured. Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.adapter.Close()
	// Barrier: a spawn that passed its closed check finishes registering
	// before the wait starts; later spawns see the closed flag and decline.
	c.spawnMu.Lock()
	c.spawnMu.Unlock() //nolint:staticcheck
	c.wg.Wait()
	if c.exec != nil {
		c.exec.Stop()
	}
	if c.statePath != "" {
		return c.store.SaveFile(c.statePath)
	}
	return nil
}

func (c *Client) closed() bool { return atomic.LoadUint32(&c.closedOnce) == 1 }

// --------------------------------------------------------------------
// Feed operations
// --------------------------------------------------------------------

func (c *Client) fetchPage(ctx context.Context, limit int, cursor string) (types.FeedPage, error) {
	c.mu.RLock()
	label := c.label
	c.mu.RUnlock()
	page, err := api.FetchPage(ctx, c.http, c.baseURL, limit, cursor, label)
	if err != nil {
		return types.FeedPage{}, err
	}
	return *page, nil
}

func (c *Client) fetchItem(ctx context.Context, id string) (types.Item, error) {
	it, err := api.GetItem(ctx, c.http, c.baseURL, id)
	if err != nil {
		return types.Item{}, err
	}
	return *it, nil
}

// LoadMore fetches and appends the next feed page, returning how many new
// items arrived. Overlapping calls beyond the first return feed.ErrBusy;
// an exhausted feed returns feed.ErrEnd.
func (c *Client) LoadMore(ctx context.Context) (int, error) {
	if c.closed() {
		return 0, ErrClosed
	}
	added, err := c.pager.LoadMore(ctx)
	if err != nil {
		return 0, err
	}
	items := c.pager.Items()
	for _, it := range items {
		c.store.Seed(it)
	}
	c.media.SetItems(items)
	return added, nil
}

// SetLabelFilter restricts the feed to one vote label, or clears the
// filter when label is empty. The loaded list resets and the next
// LoadMore starts from the top.
func (c *Client) SetLabelFilter(label string) error {
	if label != "" && !types.IsLabel(label) {
		return fmt.Errorf("unknown label %q", label)
	}
	c.mu.Lock()
	c.label = label
	c.mu.Unlock()
	c.pager.Reset()
	c.media.SetItems(nil)
	return nil
}

// Cards returns the loaded feed as render-ready snapshots in display
// order.
func (c *Client) Cards() []Card {
	items := c.pager.Items()
	cards := make([]view.Card, 0, len(items))
	for _, it := range items {
		cards = append(cards, c.cardFor(it))
	}
	return cards
}

// CardByID returns one item's render-ready snapshot.
func (c *Client) CardByID(id string) (Card, bool) {
	it, ok := c.pager.Get(id)
	if !ok {
		return Card{}, false
	}
	return c.cardFor(it), true
}

func (c *Client) cardFor(it types.Item) view.Card {
	liked, likes := c.store.LikeView(it.ID)
	counts, my, _ := c.store.VoteView(it.ID)
	mine, _ := c.resolver.IsMineStrict(it)
	return view.Build(it, liked, likes, counts, my, mine)
}

// Subscribe registers a repaint hook for one item. Every state change,
// local or remote, fires it once. The returned function unsubscribes.
func (c *Client) Subscribe(id string, fn func()) func() {
	return c.store.Subscribe(id, fn)
}

// --------------------------------------------------------------------
// Interaction mutations
// --------------------------------------------------------------------

// ToggleLike flips the session's like on an item. The flip is applied
// locally and broadcast to sibling sessions immediately; the network
// write runs on the per-item queue with retries. A write that ultimately
// fails is given up silently, leaving the optimistic state in place for
// the next reconciling event to correct. A second click while the first
// is still in flight returns ErrInflight.
func (c *Client) ToggleLike(ctx context.Context, id string) error {
	if c.closed() {
		return ErrClosed
	}
	if id == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := "like:" + id
	if !c.store.BeginMutation(key) {
		return ErrInflight
	}

	prevLiked, _ := c.store.LikeView(id)
	liked, likes := c.store.ToggleLikeLocal(id, nil)
	c.publishSelf(ctx, types.EventSelfLike, types.Snapshot{
		ID: id, NS: c.ns, Liked: &liked, Likes: &likes,
	})

	write := job.WithSettle(func(jc context.Context) error {
		snap, err := api.Like(jc, c.http, c.baseURL, id, c.ns, liked)
		if err != nil {
			return err
		}
		c.store.MergeLike(snap)
		c.publishSelf(jc, types.EventItemLike, snap)
		return nil
	}, func(err error) {
		defer c.store.EndMutation(key)
		if err != nil {
			mutationsFailedTotal.WithLabelValues("like").Inc()
			c.log.Warn().Err(err).Str("item", id).Msg("like write failed, keeping optimistic state")
		}
	})
	if err := c.exec.Submit(ctx, id, write); err != nil {
		// Never enqueued, so nothing will reconcile it: withdraw the flip.
		c.store.EndMutation(key)
		c.store.ToggleLikeLocal(id, &prevLiked)
		return c.mapSubmitErr(err)
	}
	mutationsEnqueuedTotal.WithLabelValues("like").Inc()
	return nil
}

// CastVote toggles the session's vote for label on an item: a new label
// moves the vote, the same label clears it. Locked or unknown labels
// fail with ErrLabelLocked before anything is sent.
func (c *Client) CastVote(ctx context.Context, id, label string) error {
	if c.closed() {
		return ErrClosed
	}
	if id == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := "vote:" + id
	if !c.store.BeginMutation(key) {
		return ErrInflight
	}

	prevCounts, prevMy, _ := c.store.VoteView(id)
	cleared, err := c.store.ToggleVoteLocal(id, label)
	if err != nil {
		c.store.EndMutation(key)
		return err
	}
	counts, my, _ := c.store.VoteView(id)
	c.publishSelf(ctx, types.EventSelfVote, types.Snapshot{
		ID: id, NS: c.ns, Counts: counts, My: &my,
	})

	write := job.WithSettle(func(jc context.Context) error {
		var snap types.Snapshot
		var err error
		if cleared {
			snap, err = api.Unvote(jc, c.http, c.baseURL, id, c.ns)
		} else {
			snap, err = api.Vote(jc, c.http, c.baseURL, id, c.ns, label)
		}
		if err != nil {
			return err
		}
		c.store.MergeVote(snap)
		c.publishSelf(jc, types.EventVoteUpdate, snap)
		return nil
	}, func(err error) {
		defer c.store.EndMutation(key)
		if err != nil {
			mutationsFailedTotal.WithLabelValues("vote").Inc()
			c.log.Warn().Err(err).Str("item", id).Str("label", label).Msg("vote write failed, keeping optimistic state")
		}
	})
	if err := c.exec.Submit(ctx, id, write); err != nil {
		// Never enqueued, so nothing will reconcile it: withdraw the guess.
		c.store.EndMutation(key)
		c.store.MergeVote(types.Snapshot{ID: id, Counts: prevCounts, My: &prevMy})
		return c.mapSubmitErr(err)
	}
	mutationsEnqueuedTotal.WithLabelValues("vote").Inc()
	return nil
}

func (c *Client) mapSubmitErr(err error) error {
	if errors.Is(err, shardqueue.ErrQueueFull) {
		return ErrBackPressure
	}
	return err
}

func (c *Client) publishSelf(ctx context.Context, typ types.EventType, snap types.Snapshot) {
	if err := c.adapter.Publish(ctx, types.Event{Type: typ, Data: snap}); err != nil {
		c.log.Debug().Err(err).Str("type", string(typ)).Msg("broadcast publish failed")
	}
}

// Delete removes an owned item. The network delete is synchronous and its
// failure is surfaced; only a confirmed delete drops the item locally,
// closes the detail view if it shows the item, and notifies siblings.
func (c *Client) Delete(ctx context.Context, id string) error {
	if c.closed() {
		return ErrClosed
	}
	it, ok := c.pager.Get(id)
	if !ok {
		it = types.Item{ID: id, NS: c.ns}
	}
	if !c.resolver.IsMine(ctx, it) {
		return ErrNotOwner
	}
	if err := api.DeleteItem(ctx, c.http, c.baseURL, id); err != nil {
		return err
	}
	c.removeLocal(id)
	c.publishSelf(ctx, types.EventItemRemoved, types.Snapshot{ID: id, NS: c.ns})
	return nil
}

// AwaitConsistency blocks until all previously submitted mutations for
// the item have been executed, by flushing a no-op through its FIFO lane.
func (c *Client) AwaitConsistency(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	flush := job.New(func(context.Context) error {
		close(done)
		return nil
	})
	if err := c.exec.Submit(ctx, id, flush); err != nil {
		return c.mapSubmitErr(err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// --------------------------------------------------------------------
// Detail view and viewport
// --------------------------------------------------------------------

// OpenModal marks an item as shown in the detail view: its push room is
// watched and, rate permitting, an authoritative snapshot is refetched in
// the background.
func (c *Client) OpenModal(ctx context.Context, id string) {
	if c.closed() {
		return
	}
	c.mu.Lock()
	c.modal = id
	c.mu.Unlock()
	c.adapter.Watch(id)
	if c.refresh.Allow() {
		c.spawn(func() { c.refreshSnapshot(ctx, id) })
	}
}

// CloseModal clears the detail view and drops its push room.
func (c *Client) CloseModal() {
	c.mu.Lock()
	id := c.modal
	c.modal = ""
	c.mu.Unlock()
	if id != "" {
		c.adapter.Unwatch(id)
	}
}

// ModalID reports which item the detail view shows, empty for none.
func (c *Client) ModalID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modal
}

func (c *Client) refreshSnapshot(ctx context.Context, id string) {
	it, err := api.GetItem(ctx, c.http, c.baseURL, id)
	if err != nil {
		c.log.Debug().Err(err).Str("item", id).Msg("snapshot refresh failed")
		return
	}
	c.pager.Upsert(*it)
	c.store.MergeLike(types.Snapshot{ID: id, Liked: it.Liked, Likes: it.Likes})
}

// loadMoreSlack is how close to the bottom the viewport must get before
// the next page is fetched.
const loadMoreSlack = 5

// Viewport reports that display indices [first, last] are on screen. It
// drives media prefetch and video pause/resume, and acts as the
// infinite-scroll sentinel: nearing the bottom fetches the next page in
// the background. The pager's busy guard collapses repeat triggers.
func (c *Client) Viewport(ctx context.Context, first, last int) {
	if c.closed() {
		return
	}
	c.media.ViewportChanged(ctx, first, last)
	if c.pager.AtEnd() || last < c.pager.Len()-loadMoreSlack {
		return
	}
	c.spawn(func() {
		if _, err := c.LoadMore(ctx); err != nil &&
			!errors.Is(err, feed.ErrBusy) && !errors.Is(err, feed.ErrEnd) {
			c.log.Debug().Err(err).Msg("scroll-triggered page fetch failed")
		}
	})
}

// MountAllMedia is the fallback for embedders without viewport tracking.
func (c *Client) MountAllMedia(ctx context.Context) {
	c.media.MountAll(ctx)
}

// --------------------------------------------------------------------
// Event loop
// --------------------------------------------------------------------

func (c *Client) handleEvent(ev types.Event) {
	// Sibling-session optimistic replays open stickiness windows but never
	// trigger snapshot refetches; only authoritative updates do.
	if ev.IsSelf() {
		switch ev.Type {
		case types.EventSelfLike:
			c.store.ApplySelfLike(ev.Data)
		case types.EventSelfVote:
			c.store.ApplySelfVote(ev.Data)
		}
		return
	}
	switch ev.Type {
	case types.EventItemLike:
		c.store.MergeLike(ev.Data)
		c.maybeRefresh(ev.Data.ID)
	case types.EventVoteUpdate:
		c.store.MergeVote(ev.Data)
		c.log.Debug().Str("item", ev.Data.ID).Int("votes", ev.Data.TotalVotes()).Msg("vote update merged")
		c.maybeRefresh(ev.Data.ID)
	case types.EventItemRemoved:
		c.removeLocal(ev.Data.ID)
	default:
		c.log.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown event type")
	}
}

// maybeRefresh refetches the authoritative snapshot for the item the
// detail view shows, bounded by the refresh limiter so a burst of pushes
// does not cascade into a burst of refetches.
func (c *Client) maybeRefresh(id string) {
	if id == "" || c.ModalID() != id || c.runCtx == nil || !c.refresh.Allow() {
		return
	}
	c.spawn(func() { c.refreshSnapshot(c.runCtx, id) })
}

func (c *Client) removeLocal(id string) {
	if id == "" {
		return
	}
	c.pager.Remove(id)
	c.store.Remove(id)
	c.media.Forget(id)
	c.media.SetItems(c.pager.Items())
	c.mu.Lock()
	closeModal := c.modal == id
	if closeModal {
		c.modal = ""
	}
	c.mu.Unlock()
	if closeModal {
		c.adapter.Unwatch(id)
	}
}
