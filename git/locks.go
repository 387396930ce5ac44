package git

import "sync"

// RepoLocks serializes work on one local clone directory
type RepoLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRepoLocks() *RepoLocks {
	return &RepoLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until key is free and returns the matching unlock func
func (l *RepoLocks) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
