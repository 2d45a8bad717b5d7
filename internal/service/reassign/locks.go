package reassign

import (
	"context"
	"sync"
)

// LockSet hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits for them.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLockSet returns an empty LockSet.
func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*keyLock)}
}

func (s *LockSet) acquireRef(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *LockSet) releaseRef(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

// Lock blocks until key is free or ctx is done.
func (s *LockSet) Lock(ctx context.Context, key string) (func(), error) {
	l := s.acquireRef(key)
	select {
	case l.sem <- struct{}{}:
		return s.unlocker(key, l), nil
	case <-ctx.Done():
		s.releaseRef(key, l)
		return nil, ctx.Err()
	}
}

func (s *LockSet) unlocker(key string, l *keyLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.releaseRef(key, l)
		})
	}
}
