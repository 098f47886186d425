package lock

import (
	"context"
	"fmt"
	"sync"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process Locker backed by one semaphore per batch id.
// Entries are dropped once nobody holds or waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[uint64]*keyedEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[uint64]*keyedEntry)}
}

var _ Locker = (*LocalLocker)(nil)

func (l *LocalLocker) Lock(ctx context.Context, ids ...uint64) (func(), error) {
	ordered := normalize(ids)
	held := make([]uint64, 0, len(ordered))

	for _, id := range ordered {
		e := l.acquireEntry(id)
		select {
		case e.sem <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.dropEntry(id)
			l.unlock(held)
			return nil, fmt.Errorf("batch %d: %w: %v", id, ErrNotObtained, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(held) })
	}, nil
}

func (l *LocalLocker) acquireEntry(id uint64) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) dropEntry(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

func (l *LocalLocker) unlock(ids []uint64) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[ids[i]]
		l.mu.Unlock()
		<-e.sem
		l.dropEntry(ids[i])
	}
}
