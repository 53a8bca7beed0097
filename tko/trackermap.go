package tko

import "sync"

// SuspectServer is one entry of TrackerMap.GetSuspectServers: a host
// with at least one recorded failure since its last success, along
// with whether it is currently TKO'd.
type SuspectServer struct {
	IsTko                   bool
	ConsecutiveFailureCount uint64
}

// TrackerMap is the process-wide registry of Trackers, keyed by host
// identity. It holds no strong reference to any Tracker: a Tracker
// stays alive only as long as at least one destination holds a Handle
// to it, and disappears from the map the moment the last Handle is
// released. See DESIGN.md for why this is implemented with an
// explicit refcount rather than a GC weak pointer.
type TrackerMap struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	counters *Counters
}

// NewTrackerMap returns an empty registry with its own, process-wide
// Counters.
func NewTrackerMap() *TrackerMap {
	return &TrackerMap{
		trackers: make(map[string]*Tracker),
		counters: NewCounters(),
	}
}

// GlobalTkos returns the counters shared by every tracker this map
// hands out.
func (m *TrackerMap) GlobalTkos() *Counters {
	return m.counters
}

// Handle is the strong reference a destination holds to its Tracker.
// Exactly one Handle should exist per destination; Release must be
// called exactly once, on destination teardown.
type Handle struct {
	tracker  *Tracker
	dest     Destination
	released bool
	mu       sync.Mutex
}

// Tracker returns the shared tracker this handle refers to.
func (h *Handle) Tracker() *Tracker { return h.tracker }

// Release runs the destination's removeDestination business logic and
// then drops this handle's reference on the tracker. If this was the
// last live reference, the tracker is removed from its TrackerMap.
// Release is idempotent: calling it more than once has no further
// effect after the first call.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	h.tracker.RemoveDestination(h.dest)
	h.tracker.trackerMap.release(h.tracker)
}

// tryAcquire increments t's refcount iff it is still greater than
// zero, mirroring std::weak_ptr::lock() — it fails once the last
// Handle has already begun releasing the tracker.
func tryAcquire(t *Tracker) bool {
	for {
		cur := t.refs.Load()
		if cur <= 0 {
			return false
		}
		if t.refs.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// release drops one reference on t. Once the count reaches zero, t is
// removed from the map — but only if the map's current entry for t's
// key is still t itself; a new tracker may already have replaced it.
func (m *TrackerMap) release(t *Tracker) {
	if t.refs.Dec() != 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.trackers[t.key]; ok && cur == t {
		if t.refs.Load() != 0 {
			// Someone raced in and re-acquired t after we observed
			// zero; tryAcquire only succeeds above zero, so this
			// indicates a bookkeeping bug rather than a benign race.
			panic("tko: removing a tracker that is still referenced")
		}
		delete(m.trackers, t.key)
	}
}

// UpdateTracker associates d with its tracker, creating one with the
// given threshold if none exists (or if the existing one's last
// reference has already begun releasing). The returned Handle must be
// released exactly once, when d is torn down.
func (m *TrackerMap) UpdateTracker(d Destination, threshold uint64) *Handle {
	key := d.HostKey()

	m.mu.Lock()
	t, ok := m.trackers[key]
	if !ok || !tryAcquire(t) {
		t = newTracker(threshold, m, key)
		t.refs.Store(1)
		m.trackers[key] = t
	}
	m.mu.Unlock()

	return &Handle{tracker: t, dest: d}
}

// ForeachTracker invokes fn once for every tracker currently live in
// the map, with its registered key. fn must not call back into this
// TrackerMap. The strong references needed to keep each tracker alive
// during the callback are acquired while the map lock is held and
// released only after it is dropped, so that releasing the last
// reference to a tracker never happens while the lock is held.
func (m *TrackerMap) ForeachTracker(fn func(key string, t *Tracker)) {
	type live struct {
		key string
		t   *Tracker
	}

	var acquired []live
	m.mu.Lock()
	for key, t := range m.trackers {
		if tryAcquire(t) {
			acquired = append(acquired, live{key, t})
		}
	}
	m.mu.Unlock()

	for _, l := range acquired {
		fn(l.key, l.t)
	}
	for _, l := range acquired {
		m.release(l.t)
	}
}

// GetSuspectServers returns, for each live tracker with at least one
// recorded failure since its last success, its current TKO state and
// consecutive failure count.
func (m *TrackerMap) GetSuspectServers() map[string]SuspectServer {
	result := make(map[string]SuspectServer)
	m.ForeachTracker(func(key string, t *Tracker) {
		if n := t.ConsecutiveFailureCount(); n > 0 {
			result[key] = SuspectServer{IsTko: t.IsTko(), ConsecutiveFailureCount: n}
		}
	})
	return result
}

// GetSuspectServersCount returns the number of trackers GetSuspectServers
// would report.
func (m *TrackerMap) GetSuspectServersCount() int {
	count := 0
	m.ForeachTracker(func(_ string, t *Tracker) {
		if t.ConsecutiveFailureCount() > 0 {
			count++
		}
	})
	return count
}
