package real_test

import (
	"context"
	"testing"
	"time"

	audfeed "github.com/audlabs/audfeed"
	"github.com/audlabs/audfeed/internal/transport"
)

func newLiveClient(t *testing.T, opts ...audfeed.Option) *audfeed.Client {
	t.Helper()
	c := audfeed.New(baseURL, ns, opts...)
	t.Cleanup(func() { _ = c.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return c
}

func TestLive_LoadAndToggleLike(t *testing.T) {
	skipWithoutBackend(t)
	c := newLiveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	added, err := c.LoadMore(ctx)
	if err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if added == 0 {
		t.Skip("live feed is empty; nothing to interact with")
	}
	id := c.Cards()[0].ID

	before, _ := c.CardByID(id)
	if err := c.ToggleLike(ctx, id); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if err := c.AwaitConsistency(ctx, id); err != nil {
		t.Fatalf("AwaitConsistency: %v", err)
	}
	after, _ := c.CardByID(id)
	if after.Liked == before.Liked {
		t.Fatalf("liked did not flip: before=%v after=%v", before.Liked, after.Liked)
	}

	// Flip back to leave the backend as found.
	if err := c.ToggleLike(ctx, id); err != nil {
		t.Fatalf("ToggleLike revert: %v", err)
	}
	if err := c.AwaitConsistency(ctx, id); err != nil {
		t.Fatalf("AwaitConsistency revert: %v", err)
	}
}

func TestLive_VoteToggleClears(t *testing.T) {
	skipWithoutBackend(t)
	c := newLiveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	cards := c.Cards()
	if len(cards) == 0 {
		t.Skip("live feed is empty")
	}
	id := cards[0].ID

	if err := c.CastVote(ctx, id, "wow"); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if err := c.AwaitConsistency(ctx, id); err != nil {
		t.Fatalf("AwaitConsistency: %v", err)
	}
	card, _ := c.CardByID(id)
	if card.MyChoice != "wow" {
		t.Fatalf("MyChoice = %q, want wow", card.MyChoice)
	}

	if err := c.CastVote(ctx, id, "wow"); err != nil {
		t.Fatalf("CastVote clear: %v", err)
	}
	if err := c.AwaitConsistency(ctx, id); err != nil {
		t.Fatalf("AwaitConsistency clear: %v", err)
	}
	card, _ = c.CardByID(id)
	if card.MyChoice != "" {
		t.Fatalf("MyChoice = %q after clearing toggle, want empty", card.MyChoice)
	}
}

func TestLive_SiblingSessionsConverge(t *testing.T) {
	skipWithoutBackend(t)
	bus := transport.NewLocalBus()
	a := newLiveClient(t, audfeed.WithBus(bus))
	b := newLiveClient(t, audfeed.WithBus(bus))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := a.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore a: %v", err)
	}
	if _, err := b.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore b: %v", err)
	}
	cards := a.Cards()
	if len(cards) == 0 {
		t.Skip("live feed is empty")
	}
	id := cards[0].ID

	if err := a.ToggleLike(ctx, id); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	want, _ := a.CardByID(id)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, ok := b.CardByID(id)
		if ok && got.Liked == want.Liked {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	got, _ := b.CardByID(id)
	if got.Liked != want.Liked {
		t.Fatalf("sessions diverged: a.Liked=%v b.Liked=%v", want.Liked, got.Liked)
	}

	if err := a.ToggleLike(ctx, id); err != nil {
		t.Fatalf("ToggleLike revert: %v", err)
	}
	if err := a.AwaitConsistency(ctx, id); err != nil {
		t.Fatalf("AwaitConsistency: %v", err)
	}
}
