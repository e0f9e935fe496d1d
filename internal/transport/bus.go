// Package transport merges the physical channels that deliver feed
// events (the push socket and the cross-session broadcast bus) into one
// deduplicated logical event stream.
package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/audlabs/audfeed/internal/types"
)

// Bus fans feed-event envelopes out to every session of the same account.
type Bus interface {
	Publish(ctx context.Context, env types.Envelope) error
	// Subscribe delivers every envelope published by any session, including
	// this one's; callers filter by Envelope.Origin. The returned function
	// cancels the subscription.
	Subscribe(ctx context.Context, handler func(types.Envelope)) (func(), error)
}

// ChannelFor returns the namespace-scoped bus channel name: one bus per
// account, so sessions of different accounts never see each other.
func ChannelFor(ns string) string { return "aud:feed:" + ns }

// ------------------------- redis bus -------------------------

// RedisBus relays envelopes between sessions through a redis pub/sub
// channel. This is the cross-device/cross-process analog of a browser
// BroadcastChannel.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

// NewRedisBus builds a bus on the account's channel.
func NewRedisBus(rdb *redis.Client, ns string, log zerolog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, channel: ChannelFor(ns), log: log}
}

func (b *RedisBus) Publish(ctx context.Context, env types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handler func(types.Envelope)) (func(), error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	// Force the subscription to be established before returning so a
	// Publish immediately after Subscribe is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	go func() {
		for msg := range sub.Channel() {
			var env types.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Debug().Err(err).Msg("transport: dropping malformed bus envelope")
				continue
			}
			handler(env)
		}
	}()
	return func() { _ = sub.Close() }, nil
}

// ------------------------- local bus -------------------------

// LocalBus is the fallback when no redis endpoint is configured: sessions
// inside the same process (multiple feed views, tests) still relay events
// instantly. Delivery is synchronous; handlers must not publish from
// within themselves.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[int]func(types.Envelope)
	next int
}

// NewLocalBus constructs an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]func(types.Envelope))}
}

func (b *LocalBus) Publish(_ context.Context, env types.Envelope) error {
	b.mu.RLock()
	handlers := make([]func(types.Envelope), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(env)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, handler func(types.Envelope)) (func(), error) {
	b.mu.Lock()
	token := b.next
	b.next++
	b.subs[token] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, token)
		b.mu.Unlock()
	}, nil
}
