package chat

import (
	"testing"
	"time"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateOK {
		t.Errorf("state after 2 failures = %q, want OK", b.State())
	}

	b.RecordFailure()
	if b.State() != StateTripped {
		t.Errorf("state after 3 failures = %q, want TRIPPED", b.State())
	}
	if b.Allow() {
		t.Error("Allow() = true right after trip, want false")
	}
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateOK {
		t.Errorf("state = %q, want OK (non-consecutive failures)", b.State())
	}
}

func TestBreaker_ProbeAfterRecoveryInterval(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("Allow() = true before recovery interval")
	}

	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Fatal("Allow() = false after recovery interval, want one probe")
	}
	// The probe re-armed the window; the next caller waits again.
	if b.Allow() {
		t.Error("Allow() = true twice in one window, want a single probe")
	}
	if b.State() != StateTripped {
		t.Errorf("state during probe = %q, want TRIPPED until success", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateOK {
		t.Errorf("state after probe success = %q, want OK", b.State())
	}
	if !b.Allow() {
		t.Error("Allow() = false after close")
	}
}

func TestBreaker_MinimumThreshold(t *testing.T) {
	b := NewBreaker(0, time.Minute)
	b.RecordFailure()
	if b.State() != StateTripped {
		t.Errorf("state = %q, want TRIPPED (threshold floors at 1)", b.State())
	}
}
