package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dunskii/consult-relay/config"
	"github.com/dunskii/consult-relay/internal/models"
)

// RedisStore keeps each peer's queue in a Redis list so multiple relay
// instances share one mailbox. Keys carry a TTL, which stands in for the
// abandoned-session sweep.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	hub    *Hub
}

// NewRedisStore connects to Redis and verifies the connection. hub may be nil.
func NewRedisStore(cfg config.RedisConfig, ttl time.Duration, hub *Hub) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl, hub: hub}, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func queueKey(roomID, peerID string) string {
	return "signals:" + roomID + ":" + peerID
}

func targetsKey(roomID string) string {
	return "signals:" + roomID + ":targets"
}

func (r *RedisStore) Append(ctx context.Context, roomID string, sig models.Signal) error {
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	key := queueKey(roomID, sig.Target)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, r.ttl)
		// Track targets so DropRoom can find every queue.
		pipe.SAdd(ctx, targetsKey(roomID), sig.Target)
		pipe.Expire(ctx, targetsKey(roomID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append signal: %w", err)
	}

	r.hub.Notify(roomID, sig.Target)
	return nil
}

func (r *RedisStore) Drain(ctx context.Context, roomID, peerID string) ([]models.Signal, error) {
	key := queueKey(roomID, peerID)

	var rangeCmd *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain signals: %w", err)
	}

	raw := rangeCmd.Val()
	if len(raw) == 0 {
		return nil, nil
	}

	result := make([]models.Signal, 0, len(raw))
	for _, entry := range raw {
		var sig models.Signal
		if err := json.Unmarshal([]byte(entry), &sig); err != nil {
			return nil, fmt.Errorf("unmarshal signal: %w", err)
		}
		result = append(result, sig)
	}
	return result, nil
}

func (r *RedisStore) DropRoom(ctx context.Context, roomID string) error {
	targets, err := r.client.SMembers(ctx, targetsKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("list room targets: %w", err)
	}

	keys := make([]string, 0, len(targets)+1)
	for _, target := range targets {
		keys = append(keys, queueKey(roomID, target))
	}
	keys = append(keys, targetsKey(roomID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("drop room queues: %w", err)
	}
	return nil
}

// Sweep is a no-op: queue keys expire via TTL.
func (r *RedisStore) Sweep(ctx context.Context, maxAge time.Duration) error {
	return nil
}
