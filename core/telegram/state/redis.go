package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configure a Redis-backed store.
type RedisOptions struct {
	// Prefix namespaces keys, e.g. "aviabot:session:".
	Prefix string
	// TTL expires idle sessions; 0 keeps them forever.
	TTL time.Duration
}

// Redis stores JSON-encoded sessions in Redis.
type Redis[S any] struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedis wraps an existing client.
func NewRedis[S any](client redis.UniversalClient, opts RedisOptions) *Redis[S] {
	if opts.Prefix == "" {
		opts.Prefix = "session:"
	}
	return &Redis[S]{client: client, opts: opts}
}

func (r *Redis[S]) key(userID int64) string {
	return r.opts.Prefix + strconv.FormatInt(userID, 10)
}

// Load fetches and decodes the session; every read refreshes the TTL.
func (r *Redis[S]) Load(ctx context.Context, userID int64) (S, error) {
	var session S
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session, ErrNotFound
	}
	if err != nil {
		return session, fmt.Errorf("state: redis get: %w", err)
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return session, fmt.Errorf("state: decode session: %w", err)
	}
	if r.opts.TTL > 0 {
		_ = r.client.Expire(ctx, r.key(userID), r.opts.TTL).Err()
	}
	return session, nil
}

// Save encodes and stores the session.
func (r *Redis[S]) Save(ctx context.Context, userID int64, session S) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.opts.TTL).Err(); err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}

// Delete removes the session.
func (r *Redis[S]) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("state: redis del: %w", err)
	}
	return nil
}

// Count scans the key prefix. It is O(n) and meant for diagnostics.
func (r *Redis[S]) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.opts.Prefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("state: redis scan: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
