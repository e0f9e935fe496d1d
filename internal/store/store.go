// Package store is the reconciliation core of the interaction engine.
//
// It holds per-item like and vote state under three concurrently-arriving
// sources of truth: local optimistic mutations, broadcast relays from
// sibling sessions, and authoritative server snapshots/push events. Both
// the feed grid and the single-post modal read and write exclusively
// through this store, which is what keeps every rendered instance of an
// item consistent.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/audlabs/audfeed/internal/types"
)

// DefaultStickiness is how long a just-issued local mutation resists being
// overwritten by a contradicting remote update. Push delivery and REST
// confirmation are unordered relative to the user's click; naively applying
// the latest-arriving message causes a visible flicker back. Empirically
// chosen; tunable via Options.
const DefaultStickiness = 1200 * time.Millisecond

// LikeState is the per-item like entry. Liked is scoped to the current
// session's account; Likes is the shared count. Nil means unknown.
type LikeState struct {
	Liked             *bool
	Likes             *int
	LastLocalMutation time.Time
}

// VoteState is the per-item vote entry. My is the account's single choice,
// empty when no vote is cast.
type VoteState struct {
	Counts            map[string]int
	My                string
	LastLocalMutation time.Time
}

// Options configures a Store.
type Options struct {
	// Stickiness overrides DefaultStickiness when > 0.
	Stickiness time.Duration

	// Gate reports whether the account has unlocked a vote label. Nil
	// treats every label as unlocked.
	Gate func(label string) bool

	// Now substitutes the clock, for tests.
	Now func() time.Time

	Logger zerolog.Logger
}

// Store holds all per-item interaction state for one mounted feed view.
// All methods are safe for concurrent use; there is no global operation
// lock beyond the short internal mutex, and different item ids never block
// each other's network mutations.
type Store struct {
	mu       sync.Mutex
	likes    map[string]*LikeState
	votes    map[string]*VoteState
	inflight map[string]struct{}
	subs     map[string]map[int]func()
	nextSub  int

	window time.Duration
	gate   func(string) bool
	now    func() time.Time
	log    zerolog.Logger
}

// New constructs an empty Store.
func New(opts Options) *Store {
	s := &Store{
		likes:    make(map[string]*LikeState),
		votes:    make(map[string]*VoteState),
		inflight: make(map[string]struct{}),
		subs:     make(map[string]map[int]func()),
		window:   opts.Stickiness,
		gate:     opts.Gate,
		now:      opts.Now,
		log:      opts.Logger,
	}
	if s.window <= 0 {
		s.window = DefaultStickiness
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Subscribe registers a repaint hook for one item id. Every DOM instance of
// the item (grid tile, open modal) registers its own hook; all of them fire
// on every state change so the instances can never diverge. The returned
// function unsubscribes.
func (s *Store) Subscribe(id string, fn func()) func() {
	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]func())
	}
	token := s.nextSub
	s.nextSub++
	s.subs[id][token] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if m := s.subs[id]; m != nil {
			delete(m, token)
			if len(m) == 0 {
				delete(s.subs, id)
			}
		}
		s.mu.Unlock()
	}
}

// notifyLocked snapshots the hooks under the lock; the caller invokes the
// returned closure after unlocking so hooks never run holding the mutex.
func (s *Store) notifyLocked(id string) func() {
	hooks := make([]func(), 0, len(s.subs[id]))
	for _, fn := range s.subs[id] {
		hooks = append(hooks, fn)
	}
	return func() {
		for _, fn := range hooks {
			fn()
		}
		if len(hooks) > 0 {
			repaintsTotal.Add(float64(len(hooks)))
		}
	}
}

// BeginMutation claims the per-key inflight slot. It returns false when an
// operation for the key is already running, which is how a rapid
// double-click collapses to a single network request. Keys are
// operation-scoped ("like:<id>", "vote:<id>") so likes and votes on the
// same item stay independent.
func (s *Store) BeginMutation(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

// EndMutation releases the inflight slot.
func (s *Store) EndMutation(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

// Seed primes state from an item's denormalized convenience fields without
// disturbing anything already reconciled for that id.
func (s *Store) Seed(it types.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.likes[it.ID]; !ok && (it.Liked != nil || it.Likes != nil) {
		ls := &LikeState{}
		if it.Liked != nil {
			v := *it.Liked
			ls.Liked = &v
		}
		if it.Likes != nil {
			n := max(*it.Likes, 0)
			ls.Likes = &n
		}
		s.likes[it.ID] = ls
	}
}

// Remove drops all state for an id after a deletion.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.likes, id)
	delete(s.votes, id)
	notify := s.notifyLocked(id)
	delete(s.subs, id)
	s.mu.Unlock()
	notify()
}

func (s *Store) likeEntry(id string) *LikeState {
	ls, ok := s.likes[id]
	if !ok {
		ls = &LikeState{}
		s.likes[id] = ls
	}
	return ls
}

func (s *Store) voteEntry(id string) *VoteState {
	vs, ok := s.votes[id]
	if !ok {
		vs = &VoteState{Counts: make(map[string]int)}
		s.votes[id] = vs
	}
	return vs
}
