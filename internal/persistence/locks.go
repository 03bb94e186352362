package persistence

import "sync"

// Locks hands out one mutex per entity collection. Mutations hold the
// collection's mutex for the whole read-modify-write cycle.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks returns an empty lock registry.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// For returns the mutex guarding entity, creating it on first use.
func (l *Locks) For(entity string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[entity]
	if !ok {
		m = &sync.Mutex{}
		l.locks[entity] = m
	}
	return m
}
