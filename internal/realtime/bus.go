package realtime

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel instances share events on.
const DefaultChannel = "mural:events"

// Publisher announces events to every connected player.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LocalBus delivers straight to the hub of this process.
type LocalBus struct {
	hub *Hub
}

func NewLocalBus(hub *Hub) *LocalBus { return &LocalBus{hub: hub} }

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	data, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	b.hub.Broadcast(data)
	return nil
}

// RedisBus publishes through a Redis channel so every instance subscribed
// to it, this one included, relays the event to its own hub.
type RedisBus struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	ready   chan struct{}
}

func NewRedisBus(rdb *redis.Client, hub *Hub, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{rdb: rdb, hub: hub, channel: channel, ready: make(chan struct{})}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ready is closed once the subscription is confirmed.
func (b *RedisBus) Ready() <-chan struct{} { return b.ready }

// Run relays channel messages into the hub until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	close(b.ready)
	log.Printf("realtime: subscribed to %s", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
