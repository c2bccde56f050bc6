package persistence

import "sync"

// DocumentLocks serializes writes per document id without a global lock.
type DocumentLocks struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func NewDocumentLocks() *DocumentLocks {
	return &DocumentLocks{locks: make(map[string]*docLock)}
}

// Lock blocks until the document's lock is held and returns its release func.
func (l *DocumentLocks) Lock(documentID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[documentID]
	if !ok {
		lk = &docLock{}
		l.locks[documentID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, documentID)
		}
		l.mu.Unlock()
	}
}
