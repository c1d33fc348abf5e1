package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionRegistry keeps the server-side record of live sessions.
// A session cookie is only honoured while its id is registered to the same user.
type SessionRegistry interface {
	Register(ctx context.Context, sid string, userID int, ttl time.Duration) error
	Active(ctx context.Context, sid string, userID int) (bool, error)
	Revoke(ctx context.Context, sid string) error
}

// StatelessRegistry trusts any correctly signed, unexpired cookie. Logging
// out clears the cookie in the browser but cannot revoke copies of it.
type StatelessRegistry struct{}

func (StatelessRegistry) Register(context.Context, string, int, time.Duration) error { return nil }

func (StatelessRegistry) Active(context.Context, string, int) (bool, error) { return true, nil }

func (StatelessRegistry) Revoke(context.Context, string) error { return nil }

// RedisRegistry stores each session id as a key holding the user id, with
// the session lifetime as TTL.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry creates a registry writing keys under prefix.
func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix}
}

// NewRedisClient connects to the Redis server named by a redis:// URL and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRegistry) key(sid string) string {
	return r.prefix + "session:" + sid
}

func (r *RedisRegistry) Register(ctx context.Context, sid string, userID int, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(sid), strconv.Itoa(userID), ttl).Err(); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Active(ctx context.Context, sid string, userID int) (bool, error) {
	stored, err := r.client.Get(ctx, r.key(sid)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return stored == userID, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, r.key(sid)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
