package types

import (
	"encoding/json"
	"strings"
)

// Snapshot is the canonical internal shape for per-item interaction state.
// Servers of different vintages spell these fields several ways; Normalize
// folds every accepted spelling into this one struct. Nil pointers mean the
// field was absent, which matters to the reconciliation rules: an absent
// field is never merged.
type Snapshot struct {
	ID     string         `json:"id"`
	NS     string         `json:"ns,omitempty"`
	Liked  *bool          `json:"liked,omitempty"`
	Likes  *int           `json:"likes,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
	My     *string        `json:"my,omitempty"`
}

// Accepted field spellings, oldest API last. Kept as data so the set is
// testable and extendable without touching the probing logic.
var (
	idKeys        = []string{"id", "item", "itemId", "item_id"}
	likedKeys     = []string{"liked", "isLiked", "hearted"}
	likeCountKeys = []string{"likes", "likeCount", "like_count", "hearts"}
	voteCountKeys = []string{"counts", "votes", "totals"}
	myChoiceKeys  = []string{"my", "myVote", "my_vote", "choice"}
)

// Normalize decodes an interaction payload of any accepted shape into a
// Snapshot. Unknown fields are ignored; a payload with none of the accepted
// fields yields an empty Snapshot and no error. Negative counts are clamped
// to zero on entry so they can never reach the store.
func Normalize(data []byte) (Snapshot, error) {
	var snap Snapshot
	if len(data) == 0 {
		return snap, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return snap, err
	}

	// Some endpoints nest the interaction fields under "item" or "data".
	for _, wrap := range []string{"item", "data"} {
		if raw, ok := fields[wrap]; ok && len(raw) > 0 && raw[0] == '{' {
			inner, err := Normalize(raw)
			if err == nil {
				snap = inner
			}
		}
	}

	if raw, ok := probe(fields, idKeys); ok {
		var id string
		if json.Unmarshal(raw, &id) == nil && id != "" {
			snap.ID = id
		}
	}
	if raw, ok := fields["ns"]; ok {
		var ns string
		if json.Unmarshal(raw, &ns) == nil {
			snap.NS = strings.ToLower(ns)
		}
	}
	if raw, ok := probe(fields, likedKeys); ok {
		var b bool
		if json.Unmarshal(raw, &b) == nil {
			snap.Liked = &b
		}
	}
	if raw, ok := probe(fields, likeCountKeys); ok {
		var n int
		if json.Unmarshal(raw, &n) == nil {
			if n < 0 {
				n = 0
			}
			snap.Likes = &n
		}
	}
	if raw, ok := probe(fields, voteCountKeys); ok {
		var m map[string]int
		if json.Unmarshal(raw, &m) == nil && m != nil {
			for k, v := range m {
				if v < 0 {
					m[k] = 0
				}
			}
			snap.Counts = m
		}
	}
	if raw, ok := probe(fields, myChoiceKeys); ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			snap.My = &s
		}
	}

	return snap, nil
}

func probe(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

// TotalVotes sums the vote counts; this is the displayed total.
func (s Snapshot) TotalVotes() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}
