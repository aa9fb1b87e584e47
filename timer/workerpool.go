package timer

import (
	"github.com/panjf2000/ants/v2"

	"github.com/fixkme/gokit/mlog"
)

// defaultPoolSize mirrors the sizing this repo's other goroutine pools
// use for per-connection/per-actor work (see framework/go.Go).
const defaultPoolSize = 1024

// workerPool is the enqueue(work) collaborator: every expired timer
// past the first one in a sweep is handed here instead of running
// in-line. Like framework/go.Go it fronts a bounded pool, but when the
// pool is full it falls back to a fresh goroutine (Go.TrySubmit
// reports failure and Go.MustSubmit blocks instead); backed by ants
// instead of a bare channel so goroutines are reused across sweeps.
type workerPool struct {
	pool *ants.Pool
}

func newWorkerPool(size int) (*workerPool, error) {
	if size <= 0 {
		size = defaultPoolSize
	}
	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(r any) {
			mlog.Errorf("timer worker pool task panic: %v", r)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &workerPool{pool: p}, nil
}

// submit hands f to the pool. If the pool is saturated, f still runs
// — on a fresh goroutine — so a fired timer is never silently
// dropped and the sweep never blocks on the pool.
func (w *workerPool) submit(f func()) {
	if err := w.pool.Submit(f); err != nil {
		mlog.Warnf("timer worker pool saturated (%v), falling back to a bare goroutine", err)
		go f()
	}
}

func (w *workerPool) release() {
	w.pool.Release()
}
