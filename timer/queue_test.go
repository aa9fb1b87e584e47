package timer

import (
	"testing"
	"time"
)

// TestS1_OneShotFire exercises scenario S1: a one-shot due=50 fires
// exactly once, no earlier than its due tick, and detaches itself.
func TestS1_OneShotFire(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	fires := 0
	done := make(chan struct{})
	e, err := newEntry(q, func(any) {
		fires++
		close(done)
	}, nil, 50, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	clk.Advance(49 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("fired before its due tick")
	default:
	}

	clk.Advance(1 * time.Millisecond)
	select {
	case <-done:
	default:
		t.Fatal("callback never ran by t=50")
	}

	if fires != 1 {
		t.Fatalf("expected exactly one fire, got %d", fires)
	}
	if e.dueOffset != infinite {
		t.Fatal("one-shot entry should be detached after firing")
	}
}

// TestS3_ChangeReschedules exercises scenario S3: changing a pending
// timer's due mid-flight reschedules from the change's own tick, not
// the original start tick.
func TestS3_ChangeReschedules(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	var fireTick uint32
	fired := make(chan struct{})
	e, err := newEntry(q, func(any) {
		fireTick = clk.NowMS()
		close(fired)
	}, nil, 100, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	clk.Advance(30 * time.Millisecond)
	if err := e.change(200, 0); err != nil {
		t.Fatalf("change: %v", err)
	}

	clk.Advance(199 * time.Millisecond) // cumulative t=229
	select {
	case <-fired:
		t.Fatal("fired before t=230")
	default:
	}

	clk.Advance(1 * time.Millisecond) // cumulative t=230
	select {
	case <-fired:
	default:
		t.Fatal("should have fired by t=230")
	}
	if fireTick != 230 {
		t.Fatalf("expected fire at tick 230, got %d", fireTick)
	}
}

// TestS5_LongTimeoutBeyondMaxNative exercises scenario S5: a due
// beyond maxNative is under-armed repeatedly by the adapter, and the
// spurious early wakes produce no user-visible callback until the
// true due tick.
func TestS5_LongTimeoutBeyondMaxNative(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	const due = uint32(0x2FFFFFFF)
	fires := 0
	e, err := newEntry(q, func(any) {
		fires++
	}, nil, due, 0)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	q.mu.Lock()
	armed := q.armedDuration
	q.mu.Unlock()
	if armed != maxNative {
		t.Fatalf("expected the initial arming clamped to maxNative (%d), got %d", maxNative, armed)
	}

	var advanced uint32
	for advanced < due {
		step := due - advanced
		if step > maxNative {
			step = maxNative
		}
		clk.Advance(time.Duration(step) * time.Millisecond)
		advanced += step

		if advanced < due && fires != 0 {
			t.Fatalf("callback fired early, at tick %d of %d", advanced, due)
		}
	}

	if fires != 1 {
		t.Fatalf("expected exactly one callback at the true due tick, got %d", fires)
	}
	if e.dueOffset != infinite {
		t.Fatal("one-shot entry should be detached after firing")
	}
}

// TestS6_MassChurnConsistency exercises the correctness half of
// scenario S6: O(1) update/delete on a 10,000-entry list preserves
// list well-formedness and membership throughout. Wall-clock
// proportionality is not asserted here — timing-based Big-O claims
// are not reliable to assert in a unit test.
func TestS6_MassChurnConsistency(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	const n = 10000

	entries := make([]*entry, n)
	for i := range entries {
		e, err := newEntry(q, func(any) {}, nil, infinite, 0)
		if err != nil {
			t.Fatalf("newEntry %d: %v", i, err)
		}
		entries[i] = e
	}
	// all detached: due_offset == INFINITE means never linked
	for i, e := range entries {
		if e.dueOffset != infinite {
			t.Fatalf("entry %d should start detached", i)
		}
	}

	for _, e := range entries {
		if err := e.change(1_000_000_000, 0); err != nil {
			t.Fatalf("change to due=1e9: %v", err)
		}
	}
	checkLinkage(t, q)
	q.mu.Lock()
	active := 0
	for c := q.head; c != nil; c = c.next {
		active++
	}
	q.mu.Unlock()
	if active != n {
		t.Fatalf("expected all %d entries linked, found %d", n, active)
	}

	for _, e := range entries {
		if err := e.change(infinite, 0); err != nil {
			t.Fatalf("change back to INFINITE: %v", err)
		}
	}
	q.mu.Lock()
	if q.head != nil {
		t.Fatal("expected an empty list after detaching every entry")
	}
	q.mu.Unlock()
	for i, e := range entries {
		if e.dueOffset != infinite {
			t.Fatalf("entry %d should be detached again, got due_offset=%d", i, e.dueOffset)
		}
	}
}

// TestSweepDispatchesExtraEntriesToPool checks that when several
// entries expire within one sweep, the first runs in-line on the
// calling goroutine and the rest are handed to the worker pool.
func TestSweepDispatchesExtraEntriesToPool(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	const n = 5
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		idx := i
		if _, err := newEntry(q, func(any) { results <- idx }, nil, 10, 0); err != nil {
			t.Fatalf("newEntry %d: %v", i, err)
		}
	}

	clk.Advance(10 * time.Millisecond)

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		select {
		case idx := <-results:
			seen[idx] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for fire %d/%d", i+1, n)
		}
	}
	if len(seen) != n {
		t.Fatalf("expected all %d entries to fire, saw %d distinct", n, len(seen))
	}

	snap := q.statsSnapshot()
	if snap.Fires != n {
		t.Fatalf("expected %d fires recorded, got %d", n, snap.Fires)
	}
	if snap.Pooled == 0 {
		t.Fatal("expected at least one non-first entry to be handed to the worker pool")
	}
}

// TestTickWrap exercises invariant 7: the queue operates correctly
// across a uint32 wrap of the tick source.
func TestTickWrap(t *testing.T) {
	start := ^uint32(0) - 20 // 20ms before the wrap
	q, clk := newTestQueue(t, start)

	fired := make(chan uint32, 1)
	_, err := newEntry(q, func(any) {
		fired <- clk.NowMS()
	}, nil, 30, 0) // due tick wraps past 0
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	clk.Advance(29 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("fired before crossing the wrap boundary's due tick")
	default:
	}

	clk.Advance(1 * time.Millisecond)
	select {
	case tick := <-fired:
		want := start + 30 // uint32 addition wraps automatically
		if tick != want {
			t.Fatalf("expected fire tick %d (post-wrap), got %d", want, tick)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran across the wrap")
	}
}
