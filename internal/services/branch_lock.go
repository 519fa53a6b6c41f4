package services

import "sync"

// branchLock serializes drawer mutations per branch inside one process.
// The database row locks and the partial unique index still guard against
// other processes; this just keeps local contention off the database.
type branchLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBranchLock() *branchLock {
	return &branchLock{locks: make(map[string]*sync.Mutex)}
}

func (l *branchLock) Lock(branchID string) func() {
	l.mu.Lock()
	m, ok := l.locks[branchID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[branchID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
