package services

import "sync"

// dealLocks serializes writers per deal id. Votes and moderation on
// different deals proceed without contention; the map only ever grows
// by one small mutex per deal that saw a write.
type dealLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newDealLocks() *dealLocks { return &dealLocks{m: make(map[string]*sync.Mutex)} }

// lock acquires the per-deal mutex and returns its unlock func.
func (l *dealLocks) lock(dealID string) func() {
	l.mu.Lock()
	dm := l.m[dealID]
	if dm == nil {
		dm = &sync.Mutex{}
		l.m[dealID] = dm
	}
	l.mu.Unlock()
	dm.Lock()
	return dm.Unlock
}
