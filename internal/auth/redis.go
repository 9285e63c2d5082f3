package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mindmate:session:"

// RedisSessionStore keeps sessions in Redis so they survive restarts and are
// shared between replicas. Expiry is delegated to Redis key TTLs.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore wraps client. ttl <= 0 stores keys without expiry.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Put stores s as JSON under the token's key.
func (r *RedisSessionStore) Put(ctx context.Context, token string, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("auth: marshal session: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+token, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("auth: store session: %w", err)
	}
	return nil
}

// Get resolves token.
func (r *RedisSessionStore) Get(ctx context.Context, token string) (Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("auth: decode session: %w", err)
	}
	return s, nil
}

// Delete revokes token.
func (r *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}
