package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// invoiceLocks serializes mutations per invoice id. Transitions are not
// commutative, so at most one mutation may be in flight for a given
// invoice at any time.
type invoiceLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newInvoiceLocks() *invoiceLocks {
	return &invoiceLocks{locks: make(map[snowflake.ID]*entry)}
}

// Acquire blocks until the per-id lock is held and returns the release
// function. Entries are reference counted so the map does not grow with
// the number of invoices ever touched.
func (l *invoiceLocks) Acquire(id snowflake.ID) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &entry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
