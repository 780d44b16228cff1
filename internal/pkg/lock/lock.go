// Package lock provides keyed locking for concurrent balance and settlement operations.
// One KeyLock serializes work per user id, another per market or option game id.
package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// keyMutex wraps a mutex with reference counting so idle entries can be dropped.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock provides per-key mutual exclusion. Different keys never block each other.
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[int64]*keyMutex),
	}
}

// acquire returns the mutex for key with its reference taken.
func (kl *KeyLock) acquire(key int64) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{}
		kl.locks[key] = km
	}
	km.refCount++
	return km
}

// release drops a reference and forgets the entry once nobody holds or waits on it.
func (kl *KeyLock) release(key int64, km *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km.refCount--
	if km.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for key or gives up when ctx is done.
func (kl *KeyLock) Lock(ctx context.Context, key int64) error {
	km := kl.acquire(key)
	if km.mu.TryLock() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiter still acquires eventually; hand the lock straight back.
		go func() {
			<-done
			km.mu.Unlock()
			kl.release(key, km)
		}()
		return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

// Unlock releases the lock for key.
func (kl *KeyLock) Unlock(key int64) {
	kl.mu.Lock()
	km, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	km.mu.Unlock()
	kl.release(key, km)
}

// WithLock executes fn while holding the lock for key. It gives up with
// ErrLockTimeout if ctx is done before the lock is acquired.
func (kl *KeyLock) WithLock(ctx context.Context, key int64, fn func() error) error {
	if err := kl.Lock(ctx, key); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// WithLocks executes fn while holding the locks for all keys, taken in
// ascending order so that two callers with overlapping sets cannot deadlock.
// Locks already taken are released if ctx is done before the last one.
func (kl *KeyLock) WithLocks(ctx context.Context, keys []int64, fn func() error) error {
	sorted := uniqueSorted(keys)
	held := 0
	defer func() {
		for i := held - 1; i >= 0; i-- {
			kl.Unlock(sorted[i])
		}
	}()
	for _, k := range sorted {
		if err := kl.Lock(ctx, k); err != nil {
			return err
		}
		held++
	}
	return fn()
}

func uniqueSorted(keys []int64) []int64 {
	out := make([]int64, 0, len(keys))
	seen := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
