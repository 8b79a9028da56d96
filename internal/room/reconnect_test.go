package room

import (
	"sync"
	"testing"
	"time"
)

type expiryRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *expiryRecorder) record(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, identity)
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestGraceTimerFiresOnce(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := newReconnectTracker(10*time.Millisecond, recorder.record)

	tracker.Start("u1")
	time.Sleep(60 * time.Millisecond)

	if got := recorder.count(); got != 1 {
		t.Fatalf("expected exactly one expiry, got %d", got)
	}
}

func TestCancelPreventsExpiry(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := newReconnectTracker(10*time.Millisecond, recorder.record)

	tracker.Start("u1")
	if !tracker.Cancel("u1") {
		t.Fatalf("expected Cancel to report a pending grace period")
	}
	time.Sleep(40 * time.Millisecond)

	if got := recorder.count(); got != 0 {
		t.Fatalf("expected no expiry after cancel, got %d", got)
	}
	if tracker.Cancel("u1") {
		t.Fatalf("second cancel should report nothing pending")
	}
}

func TestRestartSupersedesOldTimer(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := newReconnectTracker(20*time.Millisecond, recorder.record)

	tracker.Start("u1")
	time.Sleep(5 * time.Millisecond)
	tracker.Start("u1")
	time.Sleep(100 * time.Millisecond)

	if got := recorder.count(); got != 1 {
		t.Fatalf("expected one expiry from the re-armed timer, got %d", got)
	}
}

func TestCancelAllDisarmsEverything(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := newReconnectTracker(10*time.Millisecond, recorder.record)

	tracker.Start("u1")
	tracker.Start("u2")
	tracker.CancelAll()
	time.Sleep(40 * time.Millisecond)

	if got := recorder.count(); got != 0 {
		t.Fatalf("expected no expiries after CancelAll, got %d", got)
	}
}
