package ledger

import "sync"

// keyLock provides mutual exclusion per (user, asset) pair so concurrent
// orders against the same position cannot interleave, while orders on
// different keys run in parallel. Single-instance; for horizontal scaling
// the store's row locks take over.
type keyLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func newKeyLock() *keyLock {
	return &keyLock{held: make(map[string]bool)}
}

// TryAcquire claims the key, reporting false if another order holds it.
// Contention is returned to the caller as a retryable conflict instead of
// queueing orders behind each other.
func (l *keyLock) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return false
	}
	l.held[key] = true
	return true
}

// Release frees the key.
func (l *keyLock) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, key)
}
