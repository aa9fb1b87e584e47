package g

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fixkme/gokit/mlog"
	"github.com/fixkme/gokit/timer"
)

// timerFire is what crosses from a timer.Timer callback (running on the
// timer package's own worker pool) onto this agent's timer channel, so
// timerCb always runs serialized on the agent's Run loop instead of
// concurrently on whichever goroutine the timer package picked.
type timerFire struct {
	TimerId int64
	NowTs   int64
	Data    any
}

type RoutineAgent struct {
	*Go
	closeSig    chan struct{}
	isClosed    bool
	mutex       sync.RWMutex
	timerCh     chan *timerFire
	timerCb     TimerCb
	beforeClose func()
	nextTimerId atomic.Int64
}

type TimerCb func(tid int64, now int64, data any)

func NewRoutineAgent(taskChSize, timerChSize int) *RoutineAgent {
	a := &RoutineAgent{
		Go:       NewGoChan(taskChSize),
		closeSig: make(chan struct{}),
		timerCh:  make(chan *timerFire, timerChSize),
	}
	return a
}

func (a *RoutineAgent) Init(timerCb TimerCb, beforeClose func()) {
	a.timerCb = timerCb
	a.beforeClose = beforeClose
}

func (a *RoutineAgent) GetTimerReciver() chan<- *timerFire {
	return a.timerCh
}

// AfterFunc arms a one-shot timer whose fire is delivered through this
// agent's own timer channel and timerCb, rather than running directly
// on the timer package's worker pool.
func (a *RoutineAgent) AfterFunc(d time.Duration, data any) (*timer.Timer, error) {
	return a.scheduleOn(d, 0, data)
}

// Every arms a periodic timer on the same per-agent marshaling as AfterFunc.
func (a *RoutineAgent) Every(d time.Duration, data any) (*timer.Timer, error) {
	return a.scheduleOn(d, d, data)
}

func (a *RoutineAgent) scheduleOn(due, period time.Duration, data any) (*timer.Timer, error) {
	tid := a.nextTimerId.Add(1)
	return timer.New(func(any) {
		fire := &timerFire{TimerId: tid, NowTs: time.Now().UnixMilli(), Data: data}
		select {
		case a.timerCh <- fire:
		default:
			mlog.Warnf("routine agent %p: timer channel full, dropping fire for timer %d", a, tid)
		}
	}, nil, due, period)
}

func (a *RoutineAgent) Run() {
	defer a.onClose()

	for {
		select {
		case <-a.closeSig:
			return
		case cb := <-a.Go.ChanCb:
			a.Go.Exec(cb)
		case t := <-a.timerCh:
			a.timerCb(t.TimerId, t.NowTs, t.Data)
		}
	}
}

func (a *RoutineAgent) onClose() {
	if a.beforeClose != nil {
		a.beforeClose()
	}
	a.Go.Close()
	for cb := range a.Go.ChanCb {
		a.Go.Exec(cb)
	}
}

func (a *RoutineAgent) Close() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.isClosed {
		return
	}

	a.isClosed = true
	close(a.closeSig)
}

func (a *RoutineAgent) SyncRunFunc(f func()) (err error) {
	a.mutex.RLock()
	if a.isClosed {
		err = ErrRoutineClosed
		a.mutex.RUnlock()
		return
	}

	errCh := a.Go.SubmitWithResult(f)
	a.mutex.RUnlock()
	err = <-errCh
	return
}

func (a *RoutineAgent) CtxRunFunc(ctx context.Context, f func()) (err error) {
	a.mutex.RLock()
	if a.isClosed {
		err = ErrRoutineClosed
		a.mutex.RUnlock()
		return
	}

	errCh := a.Go.SubmitWithResult(f)
	for {
		select {
		case <-ctx.Done():

			return ctx.Err()
		case err := <-errCh:
			return err
		}
	}
}

func (a *RoutineAgent) TryRunFunc(f func()) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.isClosed {
		return ErrRoutineClosed
	}

	if !a.Go.TrySubmit(f) {
		return ErrGoChanFull
	}
	return nil
}

func (a *RoutineAgent) MustRunFunc(f func()) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.isClosed {
		return ErrRoutineClosed
	}

	a.Go.MustSubmit(f)
	return nil
}
