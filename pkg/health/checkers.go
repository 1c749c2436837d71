package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck reports unhealthy once the live goroutine count passes
// limit. Registered as a liveness check it catches goroutine leaks before
// they exhaust the process.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck reports unhealthy when any recorded stop-the-world GC
// pause exceeded limit, a signal of memory pressure or an oversized heap.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		for _, pause := range stats.Pause {
			if pause > limit {
				return errors.Errorf("GC pause %s over limit %s", pause, limit)
			}
		}
		return nil
	}
}
