package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]string
	ttls []time.Duration
	err  error
}

func (m *memoryLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	m.ttls = append(m.ttls, ttl)
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, ok := m.held[key]; ok {
		return "", false, nil
	}
	owner := uuid.NewString()
	m.held[key] = owner
	return owner, true, nil
}

func (m *memoryLocker) ReleaseLock(ctx context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == owner {
		delete(m.held, key)
	}
	return nil
}

func TestRedisLockExcludesSecondReplica(t *testing.T) {
	locker := &memoryLocker{}
	first, err := NewRedisLock(locker, "cron:cycle", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(locker, "cron:cycle", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)

	blocked, err := second.TryAcquire(ctx)
	require.NoError(t, err)
	require.Nil(t, blocked, "second replica is excluded")

	require.NoError(t, lease.Release(ctx))
	again, err := second.TryAcquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, again, "lock is free after the owner releases")

	require.NoError(t, lease.Release(ctx), "a stale lease cannot free someone else's lock")
	still, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.Nil(t, still)
}

func TestRedisLockDefaultsTTL(t *testing.T) {
	locker := &memoryLocker{}
	lock, err := NewRedisLock(locker, "k", 0)
	require.NoError(t, err)
	_, err = lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, []time.Duration{defaultLockTTL}, locker.ttls)
}

func TestRedisLockWrapsAcquireError(t *testing.T) {
	cause := errors.New("redis down")
	lock, err := NewRedisLock(&memoryLocker{err: cause}, "k", time.Minute)
	require.NoError(t, err)
	_, err = lock.TryAcquire(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(&memoryLocker{}, "", time.Minute)
	require.Error(t, err)
}
