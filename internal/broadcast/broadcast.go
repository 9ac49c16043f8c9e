// Package broadcast delivers refreshed leaderboards to the real-time
// layer. The WebSocket gateway runs as a separate process and
// subscribes to Redis Pub/Sub; this package is the publishing side.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillforge/skillforge/internal/ranking"
)

// ChannelPrefix namespaces the Pub/Sub channels. The audience for a
// board update is everyone subscribed to its scope channel, e.g.
// "skillforge:leaderboard:overall" or
// "skillforge:leaderboard:project:42".
const ChannelPrefix = "skillforge:leaderboard:"

// Message is the payload published for one refreshed board.
type Message struct {
	Scope     string          `json:"scope"`
	TimeRange string          `json:"timeRange"`
	Entries   []ranking.Entry `json:"entries"`
	Stats     ranking.Stats   `json:"stats"`
	At        time.Time       `json:"at"`
}

// RedisBroadcaster publishes board updates over Redis Pub/Sub.
type RedisBroadcaster struct {
	client *redis.Client
}

// Config holds Redis connection settings for the broadcaster.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis creates a broadcaster and verifies connectivity.
func NewRedis(ctx context.Context, cfg Config) (*RedisBroadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect broadcast redis: %w", err)
	}
	return &RedisBroadcaster{client: client}, nil
}

// NewRedisFromClient creates a broadcaster using an existing client.
func NewRedisFromClient(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

// BroadcastLeaderboard implements ranking.Broadcaster.
func (b *RedisBroadcaster) BroadcastLeaderboard(ctx context.Context, scope ranking.Scope, rng ranking.TimeRange, entries []ranking.Entry, stats ranking.Stats) error {
	payload, err := json.Marshal(Message{
		Scope:     scope.String(),
		TimeRange: string(rng),
		Entries:   entries,
		Stats:     stats,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelPrefix+scope.String(), payload).Err(); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}

// Nop discards every broadcast. Used in tests and redis-less runs.
type Nop struct{}

// BroadcastLeaderboard implements ranking.Broadcaster.
func (Nop) BroadcastLeaderboard(ctx context.Context, scope ranking.Scope, rng ranking.TimeRange, entries []ranking.Entry, stats ranking.Stats) error {
	return nil
}
