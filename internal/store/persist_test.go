package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audlabs/audfeed/internal/types"
)

func TestPersist_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.bin")

	s := newTestStore(newFakeClock(), nil)
	s.Seed(types.Item{ID: "a1", Liked: boolPtr(true), Likes: intPtr(8)})
	_, err := s.ToggleVoteLocal("a2", "wow")
	require.NoError(t, err)
	require.NoError(t, s.SaveFile(path))

	// A fresh session sees the last-known intent before any network I/O.
	restored := newTestStore(newFakeClock(), nil)
	require.NoError(t, restored.LoadFile(path))

	liked, likes := restored.LikeView("a1")
	assert.True(t, liked)
	assert.Equal(t, 8, likes)
	counts, my, _ := restored.VoteView("a2")
	assert.Equal(t, "wow", my)
	assert.Equal(t, 1, counts["wow"])
}

func TestLoadFile_DoesNotClobberReconciledState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.bin")

	old := newTestStore(newFakeClock(), nil)
	old.Seed(types.Item{ID: "a1", Liked: boolPtr(false), Likes: intPtr(1)})
	require.NoError(t, old.SaveFile(path))

	s := newTestStore(newFakeClock(), nil)
	s.MergeLike(types.Snapshot{ID: "a1", Liked: boolPtr(true), Likes: intPtr(5)})
	require.NoError(t, s.LoadFile(path))

	liked, likes := s.LikeView("a1")
	assert.True(t, liked, "stale disk intent must not overwrite fresher state")
	assert.Equal(t, 5, likes)
}

func TestLoadFile_NoStickinessFromDisk(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.bin")

	old := newTestStore(newFakeClock(), nil)
	old.ToggleLikeLocal("a1", nil) // liked=true
	require.NoError(t, old.SaveFile(path))

	clock := newFakeClock()
	s := newTestStore(clock, nil)
	require.NoError(t, s.LoadFile(path))

	// A remote snapshot right after reload wins: disk intent is old news.
	s.MergeLike(types.Snapshot{ID: "a1", Liked: boolPtr(false), Likes: intPtr(0)})
	liked, _ := s.LikeView("a1")
	assert.False(t, liked)
}

func TestLoadFile_MissingFileErrors(t *testing.T) {
	t.Parallel()
	s := newTestStore(newFakeClock(), nil)
	assert.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "nope.bin")))
}
