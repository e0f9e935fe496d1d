package store

import (
	"github.com/audlabs/audfeed/internal/types"
)

// LikeView returns the displayed like state for an id. Unknown fields read
// as the zero values.
func (s *Store) LikeView(id string) (liked bool, likes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.likes[id]; ok {
		if ls.Liked != nil {
			liked = *ls.Liked
		}
		if ls.Likes != nil {
			likes = *ls.Likes
		}
	}
	return liked, likes
}

// ToggleLikeLocal commits the optimistic half of a like toggle: the new
// liked value is the inverse of the displayed one (or force, when set) and
// the count moves ±1 relative to the displayed count, clamped at zero. The
// local-mutation timestamp opens the stickiness window.
func (s *Store) ToggleLikeLocal(id string, force *bool) (liked bool, likes int) {
	s.mu.Lock()
	ls := s.likeEntry(id)

	current := false
	if ls.Liked != nil {
		current = *ls.Liked
	}
	liked = !current
	if force != nil {
		liked = *force
	}

	count := 0
	if ls.Likes != nil {
		count = *ls.Likes
	}
	switch {
	case liked && !current:
		count++
	case !liked && current:
		count--
	}
	likes = max(count, 0)

	ls.Liked = &liked
	ls.Likes = &likes
	ls.LastLocalMutation = s.now()

	notify := s.notifyLocked(id)
	s.mu.Unlock()
	notify()
	return liked, likes
}

// ApplySelfLike replays a sibling session's optimistic like locally. It is
// committed exactly like a local click, stickiness window included, so a
// stale push arriving here moments later cannot flicker this session back.
func (s *Store) ApplySelfLike(snap types.Snapshot) {
	if snap.ID == "" || snap.Liked == nil {
		return
	}
	s.mu.Lock()
	ls := s.likeEntry(snap.ID)
	v := *snap.Liked
	ls.Liked = &v
	if snap.Likes != nil {
		n := max(*snap.Likes, 0)
		ls.Likes = &n
	}
	ls.LastLocalMutation = s.now()
	notify := s.notifyLocked(snap.ID)
	s.mu.Unlock()
	notify()
}

// MergeLike reconciles an inbound like update (push event, cross-session
// relay, snapshot fetch, or this session's own REST confirmation).
//
// The count is merged whenever present: counts are shared across accounts
// and the server's value must converge. The liked boolean is account-scoped
// and gets temporary local precedence: within the stickiness window of the
// last local mutation a contradicting liked value is dropped. After the
// window elapses the next inbound value is accepted unconditionally.
func (s *Store) MergeLike(snap types.Snapshot) {
	if snap.ID == "" {
		return
	}
	s.mu.Lock()
	ls := s.likeEntry(snap.ID)

	if snap.Likes != nil {
		n := max(*snap.Likes, 0)
		ls.Likes = &n
	}

	if snap.Liked != nil {
		sticky := !ls.LastLocalMutation.IsZero() &&
			s.now().Sub(ls.LastLocalMutation) < s.window
		contradicts := ls.Liked != nil && *ls.Liked != *snap.Liked
		if sticky && contradicts {
			stickyDropsTotal.Inc()
			s.log.Debug().Str("id", snap.ID).Bool("remote_liked", *snap.Liked).
				Msg("store: dropped contradicting liked inside stickiness window")
		} else {
			v := *snap.Liked
			ls.Liked = &v
		}
	}

	notify := s.notifyLocked(snap.ID)
	s.mu.Unlock()
	notify()
}
