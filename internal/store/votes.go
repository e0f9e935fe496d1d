package store

import (
	"errors"

	"github.com/audlabs/audfeed/internal/types"
)

// ErrLabelLocked is returned when the account has not unlocked the clicked
// vote label. Locked clicks are no-ops; the caller surfaces a hint.
var ErrLabelLocked = errors.New("vote label locked")

// VoteView returns the displayed vote state for an id: a copy of the
// per-label counts, the account's current choice, and the summed total.
func (s *Store) VoteView(id string) (counts map[string]int, my string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts = make(map[string]int)
	if vs, ok := s.votes[id]; ok {
		for k, v := range vs.Counts {
			counts[k] = v
			total += v
		}
		my = vs.My
	}
	return counts, my, total
}

// ToggleVoteLocal commits the optimistic half of a vote. Single-selection
// poll semantics: clicking the active choice clears it (unvote); clicking a
// different label moves the vote, decrementing the previous label's count.
// cleared reports whether the result is an unvote, which decides the
// network call the caller issues.
func (s *Store) ToggleVoteLocal(id, label string) (cleared bool, err error) {
	if !types.IsLabel(label) {
		return false, ErrLabelLocked
	}
	if s.gate != nil && !s.gate(label) {
		return false, ErrLabelLocked
	}

	s.mu.Lock()
	vs := s.voteEntry(id)

	if vs.My == label {
		vs.Counts[label] = max(vs.Counts[label]-1, 0)
		vs.My = ""
		cleared = true
	} else {
		if vs.My != "" {
			vs.Counts[vs.My] = max(vs.Counts[vs.My]-1, 0)
		}
		vs.Counts[label]++
		vs.My = label
	}
	vs.LastLocalMutation = s.now()

	notify := s.notifyLocked(id)
	s.mu.Unlock()
	notify()
	return cleared, nil
}

// ApplySelfVote replays a sibling session's optimistic vote locally.
func (s *Store) ApplySelfVote(snap types.Snapshot) {
	if snap.ID == "" {
		return
	}
	s.mu.Lock()
	vs := s.voteEntry(snap.ID)
	if snap.Counts != nil {
		vs.Counts = copyCounts(snap.Counts)
	}
	if snap.My != nil {
		vs.My = *snap.My
	}
	vs.LastLocalMutation = s.now()
	notify := s.notifyLocked(snap.ID)
	s.mu.Unlock()
	notify()
}

// MergeVote reconciles an inbound vote update. Votes need no stickiness
// window: the choice is always this account's, so there is no cross-account
// ambiguity. An authoritative response's counts fully replace the
// optimistic guess; My is only touched when the payload carries it, since
// push events for other accounts' votes say nothing about ours.
func (s *Store) MergeVote(snap types.Snapshot) {
	if snap.ID == "" {
		return
	}
	s.mu.Lock()
	vs := s.voteEntry(snap.ID)
	if snap.Counts != nil {
		vs.Counts = copyCounts(snap.Counts)
	}
	if snap.My != nil {
		vs.My = *snap.My
	}
	notify := s.notifyLocked(snap.ID)
	s.mu.Unlock()
	notify()
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = max(v, 0)
	}
	return out
}
