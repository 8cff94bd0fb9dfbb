package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process keyed mutex. Each key is a one-slot channel
// so waiters can give up on timeout or context cancellation.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewLocalLocker creates an empty LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Acquire implements Locker
func (l *LocalLocker) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	s := l.ref(key)

	select {
	case s.ch <- struct{}{}:
		return l.releaseFunc(key, s), nil
	default:
	}

	if wait <= 0 {
		l.unref(key, s)
		return nil, timeoutError(key, wait)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return l.releaseFunc(key, s), nil
	case <-timer.C:
		l.unref(key, s)
		return nil, timeoutError(key, wait)
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) releaseFunc(key string, s *slot) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}
}

func (l *LocalLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	return s
}

// unref drops the slot once nobody holds or waits on it
func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}

// Len returns the number of live keys
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ Locker = (*LocalLocker)(nil)
