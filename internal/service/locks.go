package service

import "sync"

// tenantLocker serializes mutating operations per tenant. All billing
// entities are tenant-scoped and cross-tenant operations never occur, so
// a keyed mutex is the unit of mutual exclusion; the database transaction
// still guards against concurrent writers from other processes.
type tenantLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTenantLocker() *tenantLocker {
	return &tenantLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *tenantLocker) lock(tenantID string) func() {
	l.mu.Lock()
	m, ok := l.locks[tenantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tenantID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
