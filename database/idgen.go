package database

import (
	"sync"
	"time"
)

// IDGenerator hands out order ids derived from the wall clock in
// milliseconds. Ids never repeat and never decrease within a process, even
// when several orders land in the same millisecond or the clock steps back.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the next id together with the time it was derived from.
func (g *IDGenerator) Next() (int64, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	at := g.now()
	id := at.UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id, at
}

// Observe raises the floor so later ids are greater than id. Stores call it
// with the largest persisted id on start-up.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}
