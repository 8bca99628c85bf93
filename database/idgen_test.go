package database

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIDGenerator_SameMillisecond(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &IDGenerator{now: fixedClock(at)}

	first, _ := g.Next()
	second, _ := g.Next()
	third, _ := g.Next()

	assert.Equal(t, at.UnixMilli(), first)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
}

func TestIDGenerator_ClockStepsBack(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &IDGenerator{now: fixedClock(at)}
	first, _ := g.Next()

	g.now = fixedClock(at.Add(-time.Hour))
	second, _ := g.Next()
	assert.Greater(t, second, first)
}

func TestIDGenerator_Observe(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &IDGenerator{now: fixedClock(at)}

	g.Observe(at.UnixMilli() + 500)
	id, _ := g.Next()
	assert.Equal(t, at.UnixMilli()+501, id)

	g.Observe(1)
	next, _ := g.Next()
	assert.Equal(t, id+1, next)
}

func TestIDGenerator_Concurrent(t *testing.T) {
	g := NewIDGenerator()

	const n = 200
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := g.Next()
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
