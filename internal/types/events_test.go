package types

import "testing"

func TestEvent_IsSelf(t *testing.T) {
	t.Parallel()
	selfTypes := map[EventType]bool{
		EventSelfLike:    true,
		EventSelfVote:    true,
		EventItemLike:    false,
		EventVoteUpdate:  false,
		EventItemRemoved: false,
	}
	for typ, want := range selfTypes {
		if got := (Event{Type: typ}).IsSelf(); got != want {
			t.Fatalf("IsSelf(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestSnapshot_TotalVotes(t *testing.T) {
	t.Parallel()
	if got := (Snapshot{}).TotalVotes(); got != 0 {
		t.Fatalf("empty snapshot total = %d, want 0", got)
	}
	s := Snapshot{Counts: map[string]int{"aww": 2, "cool": 1, "wow": 4}}
	if got := s.TotalVotes(); got != 7 {
		t.Fatalf("total = %d, want 7", got)
	}
}
