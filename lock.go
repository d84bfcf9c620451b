package authclient

import "sync"

// ExclusionLock is the process-wide single-slot gate ensuring at most one
// interactive (UI-presenting) acquisition is in flight.
//
// The lock never blocks: a failed TryAcquire returns immediately so the
// caller can surface the contention without delay. Construct one per host
// application and share it across clients; the zero value is ready to use.
type ExclusionLock struct {
	mu     sync.Mutex
	holder string // request ID, "" when free
}

// NewExclusionLock creates an unheld lock.
func NewExclusionLock() *ExclusionLock {
	return &ExclusionLock{}
}

// TryAcquire attempts to take the lock for requestID. Returns false without
// blocking when another request holds it.
func (l *ExclusionLock) TryAcquire(requestID string) bool {
	if requestID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return false
	}
	l.holder = requestID
	return true
}

// Release frees the lock if requestID holds it. Releasing a lock held by
// another request, or not held at all, is a no-op so double-release bugs
// cannot free someone else's slot.
func (l *ExclusionLock) Release(requestID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == requestID {
		l.holder = ""
	}
}

// Holder returns the request ID currently holding the lock, or "".
func (l *ExclusionLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
