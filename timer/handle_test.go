package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/fixkme/gokit/errs"
)

func TestSignedMSToTicksValidation(t *testing.T) {
	cases := []struct {
		name    string
		ms      int64
		want    uint32
		wantErr error
	}{
		{"infinite sentinel", -1, infinite, nil},
		{"zero fires asap", 0, 0, nil},
		{"ordinary value", 1500, 1500, nil},
		{"max supported", maxSupportedMS, uint32(maxSupportedMS), nil},
		{"below -1", -2, 0, errs.OutOfRange},
		{"above max supported", maxSupportedMS + 1, 0, errs.OutOfRange},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := signedMSToTicks(c.ms)
			if c.wantErr != nil {
				if !errors.Is(err, c.wantErr) {
					t.Fatalf("signedMSToTicks(%d): want err %v, got %v", c.ms, c.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("signedMSToTicks(%d): unexpected error %v", c.ms, err)
			}
			if got != c.want {
				t.Fatalf("signedMSToTicks(%d) = %d, want %d", c.ms, got, c.want)
			}
		})
	}
}

func TestUnsignedToTicksNeverRejects(t *testing.T) {
	if got := unsignedToTicks(infinite); got != infinite {
		t.Fatalf("unsignedToTicks(0xFFFFFFFF) = %d, want INFINITE", got)
	}
	if got := unsignedToTicks(maxSupportedMSAsUint32()); got != maxSupportedMSAsUint32() {
		t.Fatalf("unsignedToTicks should pass ordinary values through unchanged")
	}
}

func maxSupportedMSAsUint32() uint32 { return uint32(maxSupportedMS) }

func TestNewRejectsNilCallback(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	if _, err := newTimerOn(q, nil, nil, 100, 0); !errors.Is(err, errs.ArgNull) {
		t.Fatalf("newTimerOn with a nil callback: want ArgNull, got %v", err)
	}
}

func TestTimerChangeAndStopViaHandle(t *testing.T) {
	q, clk := newTestQueue(t, 0)
	fired := make(chan struct{})
	tm, err := newTimerOn(q, func(any) { close(fired) }, nil, 100, 0)
	if err != nil {
		t.Fatalf("newTimerOn: %v", err)
	}

	if err := tm.ChangeUnsigned(50, 0); err != nil {
		t.Fatalf("ChangeUnsigned: %v", err)
	}

	clk.Advance(49 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("fired before the rescheduled due")
	default:
	}
	clk.Advance(1 * time.Millisecond)
	select {
	case <-fired:
	default:
		t.Fatal("should have fired after ChangeUnsigned rescheduled it to 50ms")
	}

	// A one-shot firing only detaches the entry; it never sets
	// canceled. The first Stop() after firing is still the call that
	// transitions the entry to canceled, so it reports success; a
	// second call is the true no-op.
	if !tm.Stop() {
		t.Fatal("first Stop() after a natural fire should still report success")
	}
	if tm.Stop() {
		t.Fatal("second Stop() should report no-op")
	}
}

func TestTimerStopDisposedChangeFails(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	tm, err := newTimerOn(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newTimerOn: %v", err)
	}
	tm.Stop()
	if err := tm.Change(500*time.Millisecond, 0); !errors.Is(err, errs.Disposed) {
		t.Fatalf("Change on a stopped timer: want Disposed, got %v", err)
	}
}

func TestTimerStopWithSignalRejectsNilSignal(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	tm, err := newTimerOn(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newTimerOn: %v", err)
	}
	if _, err := tm.StopWithSignal(nil); !errors.Is(err, errs.ArgNull) {
		t.Fatalf("StopWithSignal(nil): want ArgNull, got %v", err)
	}
}

func TestTimerStopAsyncAfterStopWithSignalRejected(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	tm, err := newTimerOn(q, func(any) {}, nil, 1000, 0)
	if err != nil {
		t.Fatalf("newTimerOn: %v", err)
	}
	sig := NewManualResetEvent()
	if _, err := tm.StopWithSignal(sig); err != nil {
		t.Fatalf("StopWithSignal: %v", err)
	}
	if _, err := tm.StopAsync(); !errors.Is(err, errs.AlreadyClosed) {
		t.Fatalf("StopAsync after a successful StopWithSignal: want AlreadyClosed, got %v", err)
	}
}
