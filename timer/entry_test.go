package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/fixkme/gokit/errs"
	"github.com/fixkme/gokit/ticks"
)

func newTestQueue(t *testing.T, start uint32) (*queue, *ticks.FakeClock) {
	t.Helper()
	clk := ticks.Fake(start)
	q, err := newQueue(clk, 4)
	if err != nil {
		t.Fatalf("newQueue: %v", err)
	}
	t.Cleanup(func() { q.pool.release() })
	return q, clk
}

func checkLinkage(t *testing.T, q *queue) map[*entry]bool {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	seen := make(map[*entry]bool)
	var prev *entry
	for e := q.head; e != nil; e = e.next {
		if seen[e] {
			t.Fatalf("cycle detected in timer list")
		}
		seen[e] = true
		if e.prev != prev {
			t.Fatalf("broken prev pointer at entry with due_offset=%d", e.dueOffset)
		}
		if e.dueOffset == infinite {
			t.Fatalf("reachable entry has INFINITE due_offset")
		}
		prev = e
	}
	return seen
}

func TestLinkageWellFormed(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	entries := make([]*entry, 0, 50)
	for i := 0; i < 50; i++ {
		e, err := newEntry(q, func(any) {}, nil, uint32(1000+i), 0)
		if err != nil {
			t.Fatalf("newEntry: %v", err)
		}
		entries = append(entries, e)
	}
	checkLinkage(t, q)

	for i, e := range entries {
		if i%2 == 0 {
			e.close()
		}
	}
	checkLinkage(t, q)

	for i, e := range entries {
		linked := e.dueOffset != infinite
		if i%2 == 0 && linked {
			t.Errorf("entry %d should be detached after close", i)
		}
		if i%2 != 0 && !linked {
			t.Errorf("entry %d should still be linked", i)
		}
	}
}

func TestMembershipBijection(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	entries := make([]*entry, 20)
	for i := range entries {
		e, err := newEntry(q, func(any) {}, nil, uint32(500+i), 0)
		if err != nil {
			t.Fatalf("newEntry: %v", err)
		}
		entries[i] = e
	}
	for i := 0; i < len(entries); i += 3 {
		entries[i].close()
	}

	reachable := checkLinkage(t, q)
	for i, e := range entries {
		linked := e.dueOffset != infinite
		if linked != reachable[e] {
			t.Errorf("entry %d: due_offset!=INFINITE=%v but reachable-from-head=%v", i, linked, reachable[e])
		}
	}
}

func TestCloseAtMostOnce(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	e, err := newEntry(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	if !e.close() {
		t.Fatal("first prompt close should report success")
	}
	if e.close() {
		t.Fatal("second prompt close should report no-op")
	}

	sig := NewManualResetEvent()
	if err := e.closeWithSignal(sig); !errors.Is(err, errs.AlreadyClosed) {
		t.Fatalf("closeWithSignal on an already-closed entry: want AlreadyClosed, got %v", err)
	}

	if _, err := e.closeAsync(); err != nil {
		t.Fatalf("closeAsync on a prompt-closed entry should succeed (idempotent, no signal installed): %v", err)
	}
}

func TestCloseAsyncAfterCloseWithSignalRejected(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	e, err := newEntry(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	sig := NewManualResetEvent()
	if err := e.closeWithSignal(sig); err != nil {
		t.Fatalf("closeWithSignal: %v", err)
	}
	if _, err := e.closeAsync(); !errors.Is(err, errs.AlreadyClosed) {
		t.Fatalf("closeAsync after a successful closeWithSignal: want AlreadyClosed, got %v", err)
	}
}

func TestCloseAsyncIdempotent(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	e, err := newEntry(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	ch1, err := e.closeAsync()
	if err != nil {
		t.Fatalf("first closeAsync: %v", err)
	}
	ch2, err := e.closeAsync()
	if err != nil {
		t.Fatalf("second closeAsync: %v", err)
	}
	if ch1 != ch2 {
		t.Fatal("repeated closeAsync on the same entry should return the same future")
	}
	select {
	case <-ch1:
	default:
		t.Fatal("closeAsync on an idle entry should return an already-completed future")
	}
}

func TestQuiescenceStopWithSignal(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	release := make(chan struct{})
	started := make(chan struct{})
	var ran bool

	e, err := newEntry(q, func(any) {
		close(started)
		<-release
		ran = true
	}, nil, 10, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	go clk.Advance(10 * time.Millisecond)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("callback never started")
	}

	sig := NewManualResetEvent()
	closeDone := make(chan struct{})
	go func() {
		if err := e.closeWithSignal(sig); err != nil {
			t.Errorf("closeWithSignal: %v", err)
		}
		close(closeDone)
	}()

	select {
	case <-closeDone:
	case <-time.After(time.Second):
		t.Fatal("closeWithSignal must return promptly even while the callback is in-flight")
	}

	if sig.IsSet() {
		t.Fatal("signal must not be set while the callback is still in-flight")
	}

	close(release)
	sig.Wait()
	if !ran {
		t.Fatal("callback must have run to completion before the signal was set")
	}
}

func TestQuiescenceCloseAsync(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	release := make(chan struct{})
	started := make(chan struct{})
	var ran bool

	e, err := newEntry(q, func(any) {
		close(started)
		<-release
		ran = true
	}, nil, 10, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	go clk.Advance(10 * time.Millisecond)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("callback never started")
	}

	future, err := e.closeAsync()
	if err != nil {
		t.Fatalf("closeAsync: %v", err)
	}
	select {
	case <-future:
		t.Fatal("future completed while the callback was still in-flight")
	default:
	}

	close(release)
	select {
	case <-future:
	case <-time.After(time.Second):
		t.Fatal("future never completed after the callback finished")
	}
	if !ran {
		t.Fatal("callback must have run to completion before the future completed")
	}
}

func TestReentrantChangeFromCallback(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	fires := 0
	var e *entry
	var err error
	e, err = newEntry(q, func(any) {
		fires++
		if fires == 1 {
			if chErr := e.change(15, 0); chErr != nil {
				t.Errorf("reentrant change failed: %v", chErr)
			}
		}
	}, nil, 10, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	clk.Advance(10 * time.Millisecond) // first fire at t=10, reschedules itself for t=10+15=25
	if fires != 1 {
		t.Fatalf("expected 1 fire so far, got %d", fires)
	}
	clk.Advance(14 * time.Millisecond) // t=24, not yet due
	if fires != 1 {
		t.Fatalf("expected still 1 fire at t=24, got %d", fires)
	}
	clk.Advance(1 * time.Millisecond) // t=25
	if fires != 2 {
		t.Fatalf("expected 2 fires after the reentrant reschedule fired, got %d", fires)
	}
}

func TestReentrantStopFromCallback(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	fires := 0
	var e *entry
	e, _ = newEntry(q, func(any) {
		fires++
		if fires == 2 {
			e.close()
		}
	}, nil, 10, 10)

	for i := 0; i < 5; i++ {
		clk.Advance(10 * time.Millisecond)
	}
	if fires != 2 {
		t.Fatalf("expected exactly 2 fires before the reentrant self-close, got %d", fires)
	}
	if e.dueOffset != infinite {
		t.Fatal("entry should be detached after closing itself from its own callback")
	}
}

func TestChangeOnDisposedEntryFails(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	e, err := newEntry(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}
	e.close()
	if err := e.change(500, 0); !errors.Is(err, errs.Disposed) {
		t.Fatalf("change on a closed entry: want Disposed, got %v", err)
	}
}

func TestNewEntryRejectsNilCallback(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	if _, err := newEntry(q, nil, nil, 1000, 0); !errors.Is(err, errs.ArgNull) {
		t.Fatalf("newEntry with a nil callback: want ArgNull, got %v", err)
	}
}

func TestCallbackPanicDoesNotInflateInFlightCount(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	e, err := newEntry(q, func(any) {
		panic("boom")
	}, nil, 10, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	clk.Advance(10 * time.Millisecond)

	future, err := e.closeAsync()
	if err != nil {
		t.Fatalf("closeAsync: %v", err)
	}
	select {
	case <-future:
	default:
		t.Fatal("in_flight_count should have returned to zero after the panicking callback returned")
	}
}
