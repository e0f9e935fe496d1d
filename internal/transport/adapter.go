package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/audlabs/audfeed/internal/types"
)

// Adapter is the session's single inbound event stream. It merges the
// push socket (when one is configured) with the cross-session bus,
// suppresses double deliveries, filters out the session's own bus echoes,
// and relays socket events onto the bus so sessions without their own
// socket still converge.
type Adapter struct {
	socket *Socket
	bus    Bus
	dedup  *Deduper
	origin string
	log    zerolog.Logger

	out       chan types.Event
	cancelSub func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// AdapterConfig wires an Adapter. Socket may be nil when the deployment
// has no push endpoint; Bus is required.
type AdapterConfig struct {
	Socket      *Socket
	Bus         Bus
	Origin      string
	DedupWindow time.Duration // 0 means DefaultDedupWindow
	Logger      zerolog.Logger
}

// NewAdapter builds an adapter for one session identified by origin.
func NewAdapter(cfg AdapterConfig) *Adapter {
	return &Adapter{
		socket: cfg.Socket,
		bus:    cfg.Bus,
		dedup:  NewDeduper(cfg.DedupWindow),
		origin: cfg.Origin,
		log:    cfg.Logger,
		out:    make(chan types.Event, 64),
	}
}

// Start subscribes to the bus and, if a socket is configured, dials it.
func (a *Adapter) Start(ctx context.Context) error {
	cancel, err := a.bus.Subscribe(ctx, a.onEnvelope)
	if err != nil {
		return err
	}
	a.cancelSub = cancel

	if a.socket != nil {
		a.wg.Add(2)
		go func() {
			defer a.wg.Done()
			a.socket.Run(ctx)
		}()
		go func() {
			defer a.wg.Done()
			a.pumpSocket(ctx)
		}()
	}
	return nil
}

// Events is the merged, deduplicated stream the engine consumes.
func (a *Adapter) Events() <-chan types.Event { return a.out }

// Publish broadcasts a locally-committed mutation to sibling sessions.
// The event's fingerprint is recorded first so the server push that
// confirms the same mutation does not get applied a second time.
func (a *Adapter) Publish(ctx context.Context, ev types.Event) error {
	a.dedup.Seen(ev)
	return a.bus.Publish(ctx, types.Envelope{
		Kind:    types.EnvelopeKind,
		Origin:  a.origin,
		Payload: ev,
	})
}

// Watch subscribes the push socket to item rooms. No-op without a socket.
func (a *Adapter) Watch(ids ...string) {
	if a.socket != nil {
		a.socket.Subscribe(ids...)
	}
}

// Unwatch drops item room subscriptions.
func (a *Adapter) Unwatch(ids ...string) {
	if a.socket != nil {
		a.socket.Unsubscribe(ids...)
	}
}

// Close cancels the bus subscription and waits for the socket pumps.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		if a.cancelSub != nil {
			a.cancelSub()
		}
		a.wg.Wait()
	})
}

func (a *Adapter) pumpSocket(ctx context.Context) {
	for ev := range a.socket.Events() {
		if a.dedup.Seen(ev) {
			continue
		}
		// Relay to sessions that only listen on the bus. Their own
		// socket copy, if any, is collapsed by their deduper.
		if err := a.bus.Publish(ctx, types.Envelope{
			Kind:    types.EnvelopeKind,
			Origin:  a.origin,
			Payload: ev,
		}); err != nil {
			a.log.Debug().Err(err).Msg("transport: relay publish failed")
		} else {
			relayedTotal.Inc()
		}
		a.deliver(ctx, ev)
	}
}

func (a *Adapter) onEnvelope(env types.Envelope) {
	if env.Kind != types.EnvelopeKind || env.Origin == a.origin {
		return
	}
	if a.dedup.Seen(env.Payload) {
		return
	}
	a.deliver(context.Background(), env.Payload)
}

func (a *Adapter) deliver(ctx context.Context, ev types.Event) {
	select {
	case a.out <- ev:
	case <-ctx.Done():
	}
}
