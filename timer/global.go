package timer

import (
	"sync"

	"github.com/fixkme/gokit/ticks"
)

// Config sizes the process-wide queue's worker pool. Zero means "use
// the default" (see defaultPoolSize).
type Config struct {
	PoolSize int
}

var (
	globalOnce  sync.Once
	globalQueue *queue
	globalErr   error
)

// Init sizes and starts the process-wide queue explicitly. Calling it
// more than once is a no-op — the first call wins, since there is
// exactly one queue for the whole process. Safe to skip: the first
// New*/NewMS/NewUnsigned call lazily initializes the queue with
// defaults if Init was never called.
func Init(cfg Config) error {
	globalOnce.Do(func() {
		globalQueue, globalErr = newQueue(ticks.Real(), cfg.PoolSize)
	})
	return globalErr
}

func defaultQueue() *queue {
	globalOnce.Do(func() {
		globalQueue, globalErr = newQueue(ticks.Real(), defaultPoolSize)
	})
	if globalErr != nil {
		// newQueue only fails if the worker pool can't be constructed
		// at all — a programming or environment error, not something
		// a caller can recover from, so it's treated as fatal here.
		panic(globalErr)
	}
	return globalQueue
}

// Snapshot reports the process-wide queue's current activity.
func Snapshot() Stats {
	return defaultQueue().statsSnapshot()
}
