package tko

import "go.uber.org/atomic"

// Tracker is the per-destination TKO state machine. It is safe for
// concurrent use by many goroutines and never takes a lock; the entire
// state (failure count, severity, responsible destination) lives in
// one atomic word, sumFailures, decoded by the predicates below.
//
// Encoding of sumFailures (W), given the configured threshold:
//
//	W <= threshold:            not TKO; W is the live failure count.
//	W >  threshold, W even:    soft TKO; W is the responsible Token.
//	W >  threshold, W odd:     hard TKO; W with the low bit cleared is
//	                           the responsible Token.
//
// Tokens are always even by construction (see package identity), so
// the "W odd" test unambiguously distinguishes hard TKO from the
// failure-count range only when threshold is a realistic, much
// smaller value than any live token — a precondition this package
// inherits from its callers and does not validate.
type Tracker struct {
	threshold            uint64
	sumFailures          *atomic.Uint64
	consecutiveFailures  *atomic.Uint64
	key                  string
	trackerMap           *TrackerMap
	refs                 *atomic.Int32
}

func newTracker(threshold uint64, m *TrackerMap, key string) *Tracker {
	return &Tracker{
		threshold:           threshold,
		sumFailures:         atomic.NewUint64(0),
		consecutiveFailures: atomic.NewUint64(0),
		key:                 key,
		trackerMap:          m,
		refs:                atomic.NewInt32(0),
	}
}

// IsHardTko reports whether the tracker is currently in hard TKO.
func (t *Tracker) IsHardTko() bool {
	w := t.sumFailures.Load()
	return w > t.threshold && w%2 == 1
}

// IsSoftTko reports whether the tracker is currently in soft TKO.
func (t *Tracker) IsSoftTko() bool {
	w := t.sumFailures.Load()
	return w > t.threshold && w%2 == 0
}

// IsTko reports whether the tracker is in either TKO state.
func (t *Tracker) IsTko() bool {
	return t.sumFailures.Load() > t.threshold
}

// IsResponsible reports whether d is the destination currently
// recorded as responsible for this tracker's TKO state. It is false
// whenever the tracker is not TKO'd.
func (t *Tracker) IsResponsible(d Destination) bool {
	return t.sumFailures.Load()&^1 == uint64(d.Token())
}

// ConsecutiveFailureCount is the number of failures recorded since the
// most recent successful RecordSuccess. It is purely observational and
// never drives a state transition.
func (t *Tracker) ConsecutiveFailureCount() uint64 {
	return t.consecutiveFailures.Load()
}

// GlobalTkos returns the counters shared by every tracker in this
// tracker's TrackerMap.
func (t *Tracker) GlobalTkos() *Counters {
	return t.trackerMap.counters
}

// trySetSumFailures installs value iff the tracker is not currently
// TKO'd (sumFailures <= threshold). It is the shared CAS loop behind
// both "enter hard TKO from clean" and "clear failures from clean".
func (t *Tracker) trySetSumFailures(value uint64) bool {
	cur := t.sumFailures.Load()
	for {
		if cur > t.threshold {
			return false
		}
		if t.sumFailures.CompareAndSwap(cur, value) {
			return true
		}
		cur = t.sumFailures.Load()
	}
}

// RecordSoftFailure records one soft failure from d. It returns true
// iff this call is the one that placed the tracker into soft TKO with
// d responsible.
func (t *Tracker) RecordSoftFailure(d Destination) bool {
	t.consecutiveFailures.Inc()

	if t.IsTko() {
		return false
	}

	token := uint64(d.Token())
	cur := t.sumFailures.Load()
	var value uint64

	for {
		if cur == t.threshold-1 {
			// One failure below the limit: about to enter soft TKO. The
			// speculative increment only happens once per call, tracked
			// by whether a previous loop iteration already set value to
			// our own token.
			if value != token {
				t.trackerMap.counters.incrSoftTko()
			}
			value = token
		} else {
			if value == token {
				// A previous iteration sped up and claimed the TKO;
				// this iteration says someone else already holds it or
				// we're not actually at the threshold boundary, so undo.
				t.trackerMap.counters.decrSoftTko()
			}
			if cur > t.threshold {
				// Someone else already TKO'd the host.
				return false
			}
			value = cur + 1
		}

		if t.sumFailures.CompareAndSwap(cur, value) {
			return value == token
		}
		cur = t.sumFailures.Load()
	}
}

// RecordHardFailure records one hard failure from d. It returns true
// iff this call is the one that placed the tracker into hard TKO with
// d responsible. Hard TKO bypasses the threshold entirely.
func (t *Tracker) RecordHardFailure(d Destination) bool {
	t.consecutiveFailures.Inc()

	if t.IsHardTko() {
		return false
	}

	if t.IsResponsible(d) {
		// Already responsible (was soft TKO'd); upgrade in place. No
		// other writer can act while we hold responsibility.
		t.sumFailures.Store(t.sumFailures.Load() | 1)
		t.trackerMap.counters.decrSoftTko()
		t.trackerMap.counters.incrHardTko()
		return false
	}

	if t.trySetSumFailures(uint64(d.Token()) | 1) {
		t.trackerMap.counters.incrHardTko()
		return true
	}
	return false
}

// RecordSuccess records a success from d. It returns true iff this
// call cleared a TKO state that d was responsible for.
func (t *Tracker) RecordSuccess(d Destination) bool {
	if t.IsResponsible(d) {
		// Exclusive write access: invariant 4 guarantees no other
		// writer can act while we are responsible.
		if t.IsSoftTko() {
			t.trackerMap.counters.decrSoftTko()
		}
		if t.IsHardTko() {
			t.trackerMap.counters.decrHardTko()
		}
		t.sumFailures.Store(0)
		t.consecutiveFailures.Store(0)
		return true
	}

	// Cheap early-out: avoids a CAS on every healthy request. A
	// non-responsible success only ever resets the count to zero, so a
	// zero count leaves nothing to do; a racing failure that moves the
	// count off zero afterward is logically ordered after this success.
	if t.sumFailures.Load() == 0 {
		return false
	}

	if t.trySetSumFailures(0) {
		t.consecutiveFailures.Store(0)
	}
	return false
}

// RemoveDestination is called by d on teardown. If d was responsible
// for this tracker's TKO state, it is cleared (as RecordSuccess would)
// so the host is not permanently parked; otherwise this is a no-op.
// It returns whether a TKO state was cleared.
func (t *Tracker) RemoveDestination(d Destination) bool {
	if t.IsResponsible(d) {
		return t.RecordSuccess(d)
	}
	return false
}
