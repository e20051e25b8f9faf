package state

import "sync"

// Locks serializes work per user. Entries are reference counted and removed when idle.
type Locks struct {
	mu    sync.Mutex
	items map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty lock set.
func NewLocks() *Locks {
	return &Locks{items: make(map[int64]*lockEntry)}
}

// Lock blocks until userID's lock is held and returns its release func.
func (l *Locks) Lock(userID int64) (unlock func()) {
	l.mu.Lock()
	e, ok := l.items[userID]
	if !ok {
		e = &lockEntry{}
		l.items[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.items, userID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many users currently hold or wait for a lock.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
