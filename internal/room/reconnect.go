package room

import (
	"sync"
	"time"
)

// reconnectTracker schedules grace-period expiries for disconnected
// players. Each Start arms a timer under a fresh generation; Cancel
// (or a later Start) invalidates the old generation so a stale timer
// firing after a reconnect never removes the player. The expiry
// callback itself re-checks the player's connected flag through the
// engine, so the reconnect-wins policy holds even at the deadline.
type reconnectTracker struct {
	mu       sync.Mutex
	grace    time.Duration
	nextGen  uint64
	pending  map[string]uint64
	timers   map[string]*time.Timer
	onExpire func(identity string)
}

func newReconnectTracker(grace time.Duration, onExpire func(identity string)) *reconnectTracker {
	return &reconnectTracker{
		grace:    grace,
		pending:  make(map[string]uint64),
		timers:   make(map[string]*time.Timer),
		onExpire: onExpire,
	}
}

// Start arms (or re-arms) the grace timer for identity.
func (r *reconnectTracker) Start(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.timers[identity]; ok {
		timer.Stop()
	}

	r.nextGen++
	gen := r.nextGen
	r.pending[identity] = gen
	r.timers[identity] = time.AfterFunc(r.grace, func() {
		r.fire(identity, gen)
	})
}

// Cancel disarms the grace timer for identity. It reports whether a
// grace period was pending.
func (r *reconnectTracker) Cancel(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.pending[identity]
	if timer, timerOK := r.timers[identity]; timerOK {
		timer.Stop()
		delete(r.timers, identity)
	}
	delete(r.pending, identity)
	return ok
}

// CancelAll disarms every pending timer. Called on room disposal so
// timers never leak across room lifetimes.
func (r *reconnectTracker) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for identity, timer := range r.timers {
		timer.Stop()
		delete(r.timers, identity)
	}
	r.pending = make(map[string]uint64)
}

func (r *reconnectTracker) fire(identity string, gen uint64) {
	r.mu.Lock()
	current, ok := r.pending[identity]
	if !ok || current != gen {
		r.mu.Unlock()
		return
	}
	delete(r.pending, identity)
	delete(r.timers, identity)
	r.mu.Unlock()

	r.onExpire(identity)
}
