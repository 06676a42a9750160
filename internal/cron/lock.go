package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultLockTTL = 15 * time.Minute

// Lock hands out at most one Lease at a time across worker replicas.
type Lock interface {
	// TryAcquire returns a nil Lease without error when another replica holds
	// the lock.
	TryAcquire(ctx context.Context) (Lease, error)
}

// Lease is a held lock. Release is safe to call after the TTL lapsed.
type Lease interface {
	Release(ctx context.Context) error
}

// ownerLocker is the owner-tagged lock primitive of pkg/redis.
type ownerLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// RedisLock guards one cycle key. The TTL should outlive the longest cycle.
type RedisLock struct {
	locker ownerLocker
	key    string
	ttl    time.Duration
}

func NewRedisLock(locker ownerLocker, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case locker == nil:
		return nil, errors.New("redis locker required for cron lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	return &RedisLock{locker: locker, key: key, ttl: positiveOr(ttl, defaultLockTTL)}, nil
}

func (l *RedisLock) TryAcquire(ctx context.Context) (Lease, error) {
	owner, ok, err := l.locker.AcquireLock(ctx, l.key, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLease{locker: l.locker, key: l.key, owner: owner}, nil
}

type redisLease struct {
	locker ownerLocker
	key    string
	owner  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := l.locker.ReleaseLock(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
