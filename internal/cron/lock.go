package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Bill rebuilds and exports finish well inside this; a crashed worker
// frees the lock for the next day's cycle.
const defaultLockTTL = 6 * time.Hour

// Lock serializes billing batch runs across cron-worker instances.
// Acquire returns a *LockHeldError when another run owns it.
type Lock interface {
	Acquire(ctx context.Context, purpose string) error
	Release(ctx context.Context) error
}

// LockHeldError names the run currently holding the lock.
type LockHeldError struct {
	Instance string
	Purpose  string
}

func (e *LockHeldError) Error() string {
	if e.Instance == "" {
		return "billing batch lock is held"
	}
	return fmt.Sprintf("billing batch lock is held by %s (%s)", e.Instance, e.Purpose)
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock stores "<instance>|<purpose>|<token>" under key with a TTL.
type RedisLock struct {
	client   redisStore
	key      string
	instance string
	ttl      time.Duration
	owner    string
}

func NewRedisLock(client redisStore, key, instance string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if instance == "" {
		instance = "unknown"
	}
	return &RedisLock{client: client, key: key, instance: instance, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, purpose string) error {
	value := strings.Join([]string{l.instance, purpose, uuid.NewString()}, "|")
	ok, err := l.client.SetNX(ctx, l.key, value, l.ttl)
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = value
		return nil
	}

	current, err := l.client.Get(ctx, l.key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read lock holder: %w", err)
	}
	return parseHolder(current)
}

func parseHolder(value string) *LockHeldError {
	parts := strings.SplitN(value, "|", 3)
	if len(parts) < 2 {
		return &LockHeldError{}
	}
	return &LockHeldError{Instance: parts[0], Purpose: parts[1]}
}

// Release deletes the key only while this process still owns it; after a
// TTL expiry another run may have taken it over.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		l.owner = ""
		return nil
	case err != nil:
		return fmt.Errorf("read lock owner: %w", err)
	case value != l.owner:
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
