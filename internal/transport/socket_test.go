package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audlabs/audfeed/internal/types"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvFrame(t *testing.T, ch <-chan subscribeFrame) subscribeFrame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room frame")
		return subscribeFrame{}
	}
}

func TestSocket_AnnouncesRoomsAndDeliversEvents(t *testing.T) {
	t.Parallel()
	frames := make(chan subscribeFrame, 4)
	push := make(chan types.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		go func() {
			for ev := range push {
				_ = conn.WriteJSON(ev)
			}
		}()
		for {
			var f subscribeFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}))
	defer srv.Close()

	s := NewSocket(wsURL(srv), zerolog.Nop())
	s.Subscribe("a1", "a2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Rooms registered before the dial are announced on connect.
	f := recvFrame(t, frames)
	assert.Equal(t, "subscribe", f.Action)
	assert.ElementsMatch(t, []string{"a1", "a2"}, f.Rooms)

	// Live room management while connected.
	s.Subscribe("a3")
	f = recvFrame(t, frames)
	assert.Equal(t, []string{"a3"}, f.Rooms)
	s.Unsubscribe("a2")
	f = recvFrame(t, frames)
	assert.Equal(t, "unsubscribe", f.Action)

	push <- types.Event{Type: types.EventVoteUpdate, Data: types.Snapshot{ID: "a1", Counts: map[string]int{"wow": 3}}}
	select {
	case ev := <-s.Events():
		assert.Equal(t, types.EventVoteUpdate, ev.Type)
		assert.Equal(t, 3, ev.Data.Counts["wow"])
	case <-time.After(2 * time.Second):
		t.Fatal("push event never arrived")
	}
}

func TestSocket_ReconnectReplaysRooms(t *testing.T) {
	t.Parallel()
	frames := make(chan subscribeFrame, 4)
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		n := dials.Add(1)
		var f subscribeFrame
		if err := conn.ReadJSON(&f); err == nil {
			frames <- f
		}
		if n == 1 {
			// Kill the first connection to force a reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewSocket(wsURL(srv), zerolog.Nop())
	s.Subscribe("a1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	first := recvFrame(t, frames)
	assert.Equal(t, []string{"a1"}, first.Rooms)

	// The replacement connection re-announces the full room set unprompted.
	second := recvFrame(t, frames)
	assert.Equal(t, "subscribe", second.Action)
	assert.Equal(t, []string{"a1"}, second.Rooms)
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
}

func TestSocket_MalformedFramesSkipped(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"weird":true}`))
		_ = conn.WriteJSON(types.Event{Type: types.EventItemRemoved, Data: types.Snapshot{ID: "gone"}})
		// Hold the connection open so the read loop is not torn down.
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	s := NewSocket(wsURL(srv), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case ev := <-s.Events():
		assert.Equal(t, types.EventItemRemoved, ev.Type, "garbage frames are skipped, not fatal")
	case <-time.After(2 * time.Second):
		t.Fatal("valid event never surfaced")
	}
}
