package match

import "sync"

// pairLocks serializes match creation per load and per driver. The
// at-most-one-active-match rule is enforced by a read-then-write check, so
// concurrent creations for the same key must not interleave.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pairLocks) lock(key string) func() {
	p.mu.Lock()
	m, ok := p.locks[key]
	if !ok {
		m = new(sync.Mutex)
		p.locks[key] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
