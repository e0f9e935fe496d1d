package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audlabs/audfeed/internal/types"
)

func pageOf(cursor string, ids ...string) types.FeedPage {
	items := make([]types.Item, len(ids))
	for i, id := range ids {
		items[i] = types.Item{ID: id}
	}
	return types.FeedPage{Items: items, NextCursor: cursor}
}

func staticSource(pages ...types.FeedPage) Source {
	i := 0
	return func(context.Context, int, string) (types.FeedPage, error) {
		if i >= len(pages) {
			return types.FeedPage{}, nil
		}
		p := pages[i]
		i++
		return p, nil
	}
}

func TestLoadMore_AppendsAndDedups(t *testing.T) {
	t.Parallel()
	p := New(staticSource(
		pageOf("c1", "a1", "a2", "a3"),
		pageOf("", "a2", "a4"), // a2 repeats across the page boundary
	), Options{NoShuffle: true})

	added, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added, "duplicate across pages must be dropped")

	ids := make([]string, 0, p.Len())
	for _, it := range p.Items() {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, ids)
	assert.True(t, p.AtEnd(), "empty cursor ends the feed")

	_, err = p.LoadMore(context.Background())
	assert.True(t, errors.Is(err, ErrEnd))
}

func TestLoadMore_ShuffleIsWithinPageOnly(t *testing.T) {
	t.Parallel()
	p := New(staticSource(
		pageOf("c1", "a1", "a2", "a3", "a4", "a5"),
		pageOf("", "b1", "b2", "b3", "b4", "b5"),
	), Options{Seed: 7})

	_, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	firstPage := p.Items()

	_, err = p.LoadMore(context.Background())
	require.NoError(t, err)
	all := p.Items()

	// Page one keeps its positions; page two lands strictly after it.
	assert.Equal(t, firstPage, all[:5], "already shown items must not move")
	for _, it := range all[5:] {
		assert.Contains(t, []string{"b1", "b2", "b3", "b4", "b5"}, it.ID)
	}
}

func TestLoadMore_BusyGuardCollapsesConcurrentScrolls(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	fetching := make(chan struct{})
	var once sync.Once
	p := New(func(context.Context, int, string) (types.FeedPage, error) {
		once.Do(func() { close(fetching) })
		<-release
		return pageOf("c1", "a1"), nil
	}, Options{NoShuffle: true})

	done := make(chan error, 1)
	go func() {
		_, err := p.LoadMore(context.Background())
		done <- err
	}()
	<-fetching

	_, err := p.LoadMore(context.Background())
	assert.True(t, errors.Is(err, ErrBusy), "second scroll during a fetch fails fast")

	close(release)
	require.NoError(t, <-done)
}

func TestLoadMore_TransientFailureIsNotTheEnd(t *testing.T) {
	t.Parallel()
	calls := 0
	p := New(func(context.Context, int, string) (types.FeedPage, error) {
		calls++
		if calls == 1 {
			return types.FeedPage{}, fmt.Errorf("connection reset")
		}
		return pageOf("", "a1"), nil
	}, Options{NoShuffle: true})

	_, err := p.LoadMore(context.Background())
	require.Error(t, err)
	assert.False(t, p.AtEnd(), "a failed fetch must leave the feed retryable")

	added, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestLoadMore_CursorThreadsThrough(t *testing.T) {
	t.Parallel()
	var cursors []string
	p := New(func(_ context.Context, _ int, cursor string) (types.FeedPage, error) {
		cursors = append(cursors, cursor)
		if len(cursors) == 1 {
			return pageOf("next-1", "a1"), nil
		}
		return pageOf("", "a2"), nil
	}, Options{NoShuffle: true})

	_, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	_, err = p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"", "next-1"}, cursors)
}

func TestRemove_ReindexesTail(t *testing.T) {
	t.Parallel()
	p := New(staticSource(pageOf("", "a1", "a2", "a3")), Options{NoShuffle: true})
	_, err := p.LoadMore(context.Background())
	require.NoError(t, err)

	assert.True(t, p.Remove("a2"))
	assert.False(t, p.Remove("a2"), "second removal is a no-op")

	it, ok := p.Get("a3")
	require.True(t, ok, "items after the removal must stay addressable")
	assert.Equal(t, "a3", it.ID)
	assert.Equal(t, 2, p.Len())
}

func TestUpsert_EnrichesInPlace(t *testing.T) {
	t.Parallel()
	p := New(staticSource(pageOf("", "a1", "a2")), Options{NoShuffle: true})
	_, err := p.LoadMore(context.Background())
	require.NoError(t, err)

	assert.True(t, p.Upsert(types.Item{ID: "a2", Caption: "filled in"}))
	it, _ := p.Get("a2")
	assert.Equal(t, "filled in", it.Caption)
	assert.Equal(t, "a2", p.Items()[1].ID, "position preserved")

	assert.False(t, p.Upsert(types.Item{ID: "ghost"}), "unknown ids are not appended")
	assert.Equal(t, 2, p.Len())
}

func TestReset_StartsOver(t *testing.T) {
	t.Parallel()
	pages := []types.FeedPage{pageOf("", "a1")}
	p := New(staticSource(pages[0], pages[0]), Options{NoShuffle: true})

	_, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	require.True(t, p.AtEnd())

	p.Reset()
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.AtEnd())
	added, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}
