package media

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/audlabs/audfeed/internal/types"
)

type mediaLog struct {
	mu         sync.Mutex
	prefetched []string
	played     []string
	paused     []string
}

func (m *mediaLog) hooks() Hooks {
	return Hooks{
		Prefetch: func(_ context.Context, it types.Item) {
			m.mu.Lock()
			m.prefetched = append(m.prefetched, it.ID)
			m.mu.Unlock()
		},
		Play: func(id string) {
			m.mu.Lock()
			m.played = append(m.played, id)
			m.mu.Unlock()
		},
		Pause: func(id string) {
			m.mu.Lock()
			m.paused = append(m.paused, id)
			m.mu.Unlock()
		},
	}
}

func (m *mediaLog) prefetchedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.prefetched...)
	sort.Strings(out)
	return out
}

func videoItems(ids ...string) []types.Item {
	items := make([]types.Item, len(ids))
	for i, id := range ids {
		items[i] = types.Item{ID: id, MediaKind: "video"}
	}
	return items
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestViewportChanged_PlaysEnteringPausesLeaving(t *testing.T) {
	t.Parallel()
	log := &mediaLog{}
	s := New(log.hooks(), Options{FetchesPerS: 1000})
	s.SetItems(videoItems("a1", "a2", "a3", "a4"))

	s.ViewportChanged(context.Background(), 0, 1)
	log.mu.Lock()
	assert.ElementsMatch(t, []string{"a1", "a2"}, log.played)
	assert.Empty(t, log.paused)
	log.mu.Unlock()

	// Scroll down one: a1 leaves, a3 enters, a2 stays (no replay).
	s.ViewportChanged(context.Background(), 1, 2)
	log.mu.Lock()
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, log.played)
	assert.Equal(t, []string{"a1"}, log.paused)
	log.mu.Unlock()
}

func TestViewportChanged_ImagesNeverPlayOrPause(t *testing.T) {
	t.Parallel()
	log := &mediaLog{}
	s := New(log.hooks(), Options{FetchesPerS: 1000})
	s.SetItems([]types.Item{{ID: "a1", MediaKind: "image"}, {ID: "a2", MediaKind: "image"}})

	s.ViewportChanged(context.Background(), 0, 1)
	s.ViewportChanged(context.Background(), 1, 1)
	log.mu.Lock()
	assert.Empty(t, log.played)
	assert.Empty(t, log.paused)
	log.mu.Unlock()
}

func TestViewportChanged_PrefetchesLookaheadOnce(t *testing.T) {
	t.Parallel()
	log := &mediaLog{}
	s := New(log.hooks(), Options{Lookahead: 2, FetchesPerS: 1000})
	s.SetItems(videoItems("a1", "a2", "a3", "a4", "a5", "a6"))

	s.ViewportChanged(context.Background(), 0, 0)
	waitFor(t, func() bool { return len(log.prefetchedIDs()) == 3 })
	assert.Equal(t, []string{"a1", "a2", "a3"}, log.prefetchedIDs())

	// Revisiting the same window must not refetch.
	s.ViewportChanged(context.Background(), 0, 0)
	s.ViewportChanged(context.Background(), 1, 1)
	waitFor(t, func() bool { return len(log.prefetchedIDs()) == 4 })
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, log.prefetchedIDs())
}

func TestMountAll_WarmsEverything(t *testing.T) {
	t.Parallel()
	log := &mediaLog{}
	s := New(log.hooks(), Options{FetchesPerS: 1000})
	s.SetItems(videoItems("a1", "a2", "a3"))

	s.MountAll(context.Background())
	waitFor(t, func() bool { return len(log.prefetchedIDs()) == 3 })
	log.mu.Lock()
	assert.Empty(t, log.played, "fallback mode does not drive playback")
	log.mu.Unlock()
}

func TestForget_AllowsRefetchAfterRemoval(t *testing.T) {
	t.Parallel()
	log := &mediaLog{}
	s := New(log.hooks(), Options{Lookahead: 1, FetchesPerS: 1000})
	s.SetItems(videoItems("a1", "a2"))

	s.ViewportChanged(context.Background(), 0, 0)
	waitFor(t, func() bool { return len(log.prefetchedIDs()) == 2 })

	s.Forget("a2")
	s.ViewportChanged(context.Background(), 0, 1)
	waitFor(t, func() bool {
		ids := log.prefetchedIDs()
		return len(ids) == 3
	})
}
