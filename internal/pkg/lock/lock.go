// Package lock serializes work on the same key inside one process.
//
// Settlement code locks on a round or session id (and on a user id for
// balance-only operations) before opening a database transaction, so two
// requests for the same round never race each other into the database.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock cannot be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// keyMutex is a channel-backed mutex so waiters can give up on a context.
type keyMutex struct {
	ch   chan struct{}
	refs int
}

// KeyedLock hands out one mutex per key and drops it once nobody holds or
// waits for it.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// New creates a KeyedLock.
func New() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyedLock) acquireRef(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

func (kl *KeyedLock) releaseRef(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
	}
}

// Lock blocks until key is held.
func (kl *KeyedLock) Lock(key string) {
	m := kl.acquireRef(key)
	m.ch <- struct{}{}
}

// Unlock releases key. Unlocking a key that is not held is a no-op.
func (kl *KeyedLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-m.ch:
		kl.releaseRef(key, m)
	default:
	}
}

// TryLock acquires key without blocking.
func (kl *KeyedLock) TryLock(key string) bool {
	m := kl.acquireRef(key)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		kl.releaseRef(key, m)
		return false
	}
}

// LockContext waits for key until ctx is done or timeout elapses.
// A zero timeout waits on ctx alone.
func (kl *KeyedLock) LockContext(ctx context.Context, key string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := kl.acquireRef(key)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.releaseRef(key, m)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock runs fn while holding key.
func (kl *KeyedLock) WithLock(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding key, giving up after timeout.
func (kl *KeyedLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if err := kl.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held. The answer may be stale
// by the time the caller acts on it.
func (kl *KeyedLock) IsLocked(key string) bool {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	return ok && len(m.ch) == 1
}

// Len returns the number of keys currently tracked.
func (kl *KeyedLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
