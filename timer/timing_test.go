package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/fixkme/gokit/ticks"
)

// These tests drive a dedicated queue on the real clock, because they
// exercise dispatchMu's single-native-timer-thread serialization
// against an actually-blocking callback — something the deterministic
// FakeClock, which runs waiters synchronously, cannot reproduce.
// Tolerances are deliberately generous; they assert the qualitative
// shape of S2/S4, not tight timing.

func newRealQueue(t *testing.T) *queue {
	t.Helper()
	q, err := newQueue(ticks.Real(), 4)
	if err != nil {
		t.Fatalf("newQueue: %v", err)
	}
	t.Cleanup(func() { q.pool.release() })
	return q
}

// TestS2_PeriodicDriftFloorUnderBusyCallback exercises scenario S2: a
// periodic timer (due=10ms, period=20ms) whose first callback blocks
// for 35ms. Because dispatchMu serializes the sweep (including the
// in-line first fire) against the single native wake, the busy
// callback pushes out the timer that would otherwise have woken at
// t=30 — the next observed fire lands around t=45, not t=30. Drift
// compensation then subtracts the 15ms overrun, so the third fire
// lands around t=50, back on the original 20ms grid, and later fires
// keep that grid.
func TestS2_PeriodicDriftFloorUnderBusyCallback(t *testing.T) {
	q := newRealQueue(t)

	var mu sync.Mutex
	var fireTimes []time.Time
	start := time.Now()

	e, err := newEntry(q, func(any) {
		mu.Lock()
		fireTimes = append(fireTimes, time.Now())
		n := len(fireTimes)
		mu.Unlock()
		if n == 1 {
			time.Sleep(35 * time.Millisecond)
		}
	}, nil, 10, 20)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}
	defer e.close()

	time.Sleep(230 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fireTimes) < 4 {
		t.Fatalf("expected at least 4 fires in 230ms, got %d", len(fireTimes))
	}

	offsets := make([]float64, len(fireTimes))
	for i, ft := range fireTimes {
		offsets[i] = ft.Sub(start).Seconds() * 1000
	}

	if offsets[0] < 5 || offsets[0] > 40 {
		t.Errorf("first fire at %.1fms, expected close to t=10ms", offsets[0])
	}
	// The second fire was delayed by the busy first callback past its
	// unperturbed t=30 slot; it should land close to when the first
	// callback actually released (t≈10+35=45), not at t=30.
	if offsets[1] < 35 {
		t.Errorf("second fire at %.1fms landed before the busy callback could have released it (≥35ms)", offsets[1])
	}

	// From the third fire onward the timer should track its 20ms
	// period without having accumulated the 35ms overrun.
	for i := 2; i < len(offsets)-1; i++ {
		gap := offsets[i+1] - offsets[i]
		if gap < 10 || gap > 35 {
			t.Errorf("gap between fire %d and %d is %.1fms, expected roughly 20ms", i, i+1, gap)
		}
	}
}

// TestS4_DisposeAsyncDuringPeriodicStopsFurtherFires exercises
// scenario S4: disposing a periodic timer asynchronously, immediately
// after creation, must guarantee no further callback invocation once
// the returned future completes.
func TestS4_DisposeAsyncDuringPeriodicStopsFurtherFires(t *testing.T) {
	q := newRealQueue(t)

	var mu sync.Mutex
	fires := 0
	e, err := newEntry(q, func(any) {
		mu.Lock()
		fires++
		mu.Unlock()
	}, nil, 5, 5)
	if err != nil {
		t.Fatalf("newEntry: %v", err)
	}

	future, err := e.closeAsync()
	if err != nil {
		t.Fatalf("closeAsync: %v", err)
	}

	select {
	case <-future:
	case <-time.After(2 * time.Second):
		t.Fatal("closeAsync future never completed")
	}

	mu.Lock()
	countAtCompletion := fires
	mu.Unlock()

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fires != countAtCompletion {
		t.Fatalf("callback fired %d more time(s) after the dispose_async future completed", fires-countAtCompletion)
	}
}
