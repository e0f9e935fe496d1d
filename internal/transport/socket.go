package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/audlabs/audfeed/internal/types"
)

const (
	socketWriteTimeout = 10 * time.Second
	socketDialTimeout  = 10 * time.Second
)

// subscribeFrame is the outbound room-management message.
type subscribeFrame struct {
	Action string   `json:"action"`
	Rooms  []string `json:"rooms"`
}

// Socket maintains the server push connection. Each open item detail view
// subscribes the connection to that item's room; the server pushes
// interaction events for subscribed rooms as JSON frames.
//
// The connection is re-dialed with exponential backoff after any failure,
// and the full room set is replayed on every reconnect so a dropped
// connection never silently loses subscriptions.
type Socket struct {
	url string
	log zerolog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	rooms map[string]struct{}

	events chan types.Event
}

// NewSocket prepares a socket for url. Run must be called to connect.
func NewSocket(url string, log zerolog.Logger) *Socket {
	return &Socket{
		url:    url,
		log:    log,
		rooms:  make(map[string]struct{}),
		events: make(chan types.Event, 64),
	}
}

// Events returns the inbound push stream. The channel closes when Run
// returns.
func (s *Socket) Events() <-chan types.Event { return s.events }

// Subscribe adds item rooms and, if connected, announces them immediately.
func (s *Socket) Subscribe(ids ...string) {
	s.manageRooms("subscribe", ids)
}

// Unsubscribe removes item rooms.
func (s *Socket) Unsubscribe(ids ...string) {
	s.manageRooms("unsubscribe", ids)
}

func (s *Socket) manageRooms(action string, ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range ids {
		if action == "subscribe" {
			s.rooms[id] = struct{}{}
		} else {
			delete(s.rooms, id)
		}
	}
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.writeFrame(conn, subscribeFrame{Action: action, Rooms: ids})
	}
}

// Run dials and reads until ctx is canceled, reconnecting on failure.
func (s *Socket) Run(ctx context.Context) {
	defer close(s.events)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry forever until ctx cancel

	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			s.log.Debug().Err(err).Dur("retry_in", wait).Msg("transport: socket dropped, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		// Clean read-loop exit only happens on ctx cancel.
		return
	}
}

func (s *Socket) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, socketDialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when ctx is canceled so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	s.mu.Lock()
	s.conn = conn
	resub := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		resub = append(resub, id)
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if len(resub) > 0 {
		s.writeFrame(conn, subscribeFrame{Action: "subscribe", Rooms: resub})
	}
	reconnectsTotal.Inc()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var ev types.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			s.log.Debug().Msg("transport: dropping malformed push frame")
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Socket) writeFrame(conn *websocket.Conn, frame subscribeFrame) {
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		s.log.Debug().Err(err).Str("action", frame.Action).Msg("transport: room frame write failed")
	}
}
