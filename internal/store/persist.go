package store

import (
	"encoding/gob"

	cache "github.com/patrickmn/go-cache"
)

// Persisted is the resolved per-item interaction state written to disk,
// keyed by item id. A reload or newly-opened session shows the last-known
// intent before any network round-trip completes.
type Persisted struct {
	Liked  *bool
	Likes  *int
	Counts map[string]int
	My     string
}

func init() { gob.Register(Persisted{}) }

// SaveFile snapshots the current state to path.
func (s *Store) SaveFile(path string) error {
	c := cache.New(cache.NoExpiration, 0)

	s.mu.Lock()
	ids := make(map[string]struct{}, len(s.likes)+len(s.votes))
	for id := range s.likes {
		ids[id] = struct{}{}
	}
	for id := range s.votes {
		ids[id] = struct{}{}
	}
	for id := range ids {
		p := Persisted{}
		if ls, ok := s.likes[id]; ok {
			p.Liked = ls.Liked
			p.Likes = ls.Likes
		}
		if vs, ok := s.votes[id]; ok {
			p.Counts = vs.Counts
			p.My = vs.My
		}
		c.Set(id, p, cache.NoExpiration)
	}
	s.mu.Unlock()

	return c.SaveFile(path)
}

// LoadFile primes state from a snapshot written by SaveFile. Entries the
// store has already reconciled in this session are left untouched, and the
// loaded intent does not open a stickiness window: it is old news, not a
// fresh click.
func (s *Store) LoadFile(path string) error {
	c := cache.New(cache.NoExpiration, 0)
	if err := c.LoadFile(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range c.Items() {
		p, ok := item.Object.(Persisted)
		if !ok {
			continue
		}
		if _, exists := s.likes[id]; !exists && (p.Liked != nil || p.Likes != nil) {
			s.likes[id] = &LikeState{Liked: p.Liked, Likes: p.Likes}
		}
		if _, exists := s.votes[id]; !exists && (p.Counts != nil || p.My != "") {
			vs := &VoteState{Counts: copyCounts(p.Counts), My: p.My}
			if vs.Counts == nil {
				vs.Counts = make(map[string]int)
			}
			s.votes[id] = vs
		}
	}
	return nil
}
