package lock

import (
	"context"
	"fmt"
	"sync"
)

type entry struct {
	slot chan struct{}
	refs int
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*entry)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (Release, error) {
	e := l.acquireEntry(key)

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		l.releaseEntry(key, e)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-e.slot
			l.releaseEntry(key, e)
		})
	}, nil
}

func (l *localLocker) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{slot: make(chan struct{}, 1)}
		l.locks[key] = e
	}

	e.refs++

	return e
}

func (l *localLocker) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
