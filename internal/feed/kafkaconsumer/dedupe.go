package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// revisionDedupe remembers the newest applied revision per record id.
type revisionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newRevisionDedupe(size int) *revisionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &revisionDedupe{lru: c}
}

// isNewer reports whether rev is greater than the last applied revision.
// Revision 0 means unversioned and is always applied.
func (d *revisionDedupe) isNewer(id string, rev uint64) bool {
	if rev == 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Peek(id)
	return !ok || rev > last
}

func (d *revisionDedupe) applied(id string, rev uint64) {
	if rev == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Peek(id); ok && last >= rev {
		return
	}
	d.lru.Add(id, rev)
}
