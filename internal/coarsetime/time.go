// Package coarsetime provides a cheap, coarse clock for activity timestamps.
//
// The current time is refreshed every 50ms by a background goroutine started
// on first use, so readings may lag time.Now() by up to one tick.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

const tick = 50 * time.Millisecond

var (
	now   atomic.Pointer[time.Time]
	start sync.Once
)

func run() {
	t := time.Now()
	now.Store(&t)

	ticker := time.NewTicker(tick)
	go func() {
		for range ticker.C {
			t := time.Now()
			now.Store(&t)
		}
	}()
}

// Now returns the current coarse time.
func Now() time.Time {
	start.Do(run)
	return *now.Load()
}
