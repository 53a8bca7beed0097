package tko

import (
	"sync"
	"testing"
)

// testDest is the minimal Destination used across the tko package's
// tests; host:port identity and a token carried in by the test case
// rather than minted, to keep the scenarios self-contained.
type testDest struct {
	hostKey string
	token   Token
}

func (d testDest) HostKey() string { return d.hostKey }
func (d testDest) Token() Token     { return d.token }

const (
	testThreshold = 4
)

var (
	destA = testDest{hostKey: "a:1", token: 0x1000}
	destB = testDest{hostKey: "b:1", token: 0x2000}
)

func newTestTracker(threshold uint64) *Tracker {
	m := NewTrackerMap()
	return newTracker(threshold, m, "test")
}

// Scenario 1: linear soft-TKO entry.
func TestTrackerLinearSoftTkoEntry(t *testing.T) {
	tr := newTestTracker(testThreshold)

	want := []bool{false, false, false, true}
	for i, w := range want {
		got := tr.RecordSoftFailure(destA)
		if got != w {
			t.Fatalf("call %d: RecordSoftFailure(A) = %v, want %v", i+1, got, w)
		}
	}

	if !tr.IsSoftTko() {
		t.Fatal("expected soft TKO")
	}
	if !tr.IsResponsible(destA) {
		t.Fatal("expected A responsible")
	}
	if got := tr.GlobalTkos().SoftTkos(); got != 1 {
		t.Fatalf("soft_tkos = %d, want 1", got)
	}
	if got := tr.GlobalTkos().HardTkos(); got != 0 {
		t.Fatalf("hard_tkos = %d, want 0", got)
	}
	if got := tr.ConsecutiveFailureCount(); got != 4 {
		t.Fatalf("consecutive_failure_count = %d, want 4", got)
	}
}

// Scenario 2: success clears TKO.
func TestTrackerSuccessClearsSoftTko(t *testing.T) {
	tr := newTestTracker(testThreshold)
	for i := 0; i < 4; i++ {
		tr.RecordSoftFailure(destA)
	}

	if !tr.RecordSuccess(destA) {
		t.Fatal("expected RecordSuccess(A) to clear the TKO")
	}
	if tr.IsTko() {
		t.Fatal("expected tracker to no longer be TKO")
	}
	if got := tr.GlobalTkos().SoftTkos(); got != 0 {
		t.Fatalf("soft_tkos = %d, want 0", got)
	}
	if got := tr.sumFailures.Load(); got != 0 {
		t.Fatalf("sum_failures = %d, want 0", got)
	}
	if got := tr.ConsecutiveFailureCount(); got != 0 {
		t.Fatalf("consecutive_failure_count = %d, want 0", got)
	}
}

// Scenario 3: non-responsible success on a clean tracker is a no-op.
func TestTrackerNonResponsibleSuccessOnCleanTrackerIsCheap(t *testing.T) {
	tr := newTestTracker(testThreshold)

	if tr.RecordSuccess(destB) {
		t.Fatal("expected RecordSuccess(B) on a clean tracker to return false")
	}
	if got := tr.GlobalTkos().SoftTkos(); got != 0 {
		t.Fatalf("soft_tkos = %d, want 0", got)
	}
	if got := tr.GlobalTkos().HardTkos(); got != 0 {
		t.Fatalf("hard_tkos = %d, want 0", got)
	}
	if got := tr.sumFailures.Load(); got != 0 {
		t.Fatalf("sum_failures = %d, want 0", got)
	}
}

// Scenario 4: hard TKO bypasses the threshold entirely.
func TestTrackerHardFailureBypassesThreshold(t *testing.T) {
	tr := newTestTracker(testThreshold)

	if !tr.RecordHardFailure(destA) {
		t.Fatal("expected RecordHardFailure(A) to acquire hard TKO")
	}
	if !tr.IsHardTko() {
		t.Fatal("expected hard TKO")
	}
	if !tr.IsResponsible(destA) {
		t.Fatal("expected A responsible")
	}
	if got := tr.GlobalTkos().HardTkos(); got != 1 {
		t.Fatalf("hard_tkos = %d, want 1", got)
	}
	if got := tr.GlobalTkos().SoftTkos(); got != 0 {
		t.Fatalf("soft_tkos = %d, want 0", got)
	}
}

// Scenario 5: soft-to-hard upgrade by the same responsible destination.
func TestTrackerSoftToHardUpgrade(t *testing.T) {
	tr := newTestTracker(testThreshold)
	for i := 0; i < 4; i++ {
		tr.RecordSoftFailure(destA)
	}

	if tr.RecordHardFailure(destA) {
		t.Fatal("expected RecordHardFailure(A) upgrade to return false (not a new acquisition)")
	}
	if !tr.IsHardTko() {
		t.Fatal("expected hard TKO after upgrade")
	}
	if tr.IsSoftTko() {
		t.Fatal("expected soft TKO to be cleared after upgrade")
	}
	if got := tr.GlobalTkos().SoftTkos(); got != 0 {
		t.Fatalf("soft_tkos = %d, want 0", got)
	}
	if got := tr.GlobalTkos().HardTkos(); got != 1 {
		t.Fatalf("hard_tkos = %d, want 1", got)
	}
	if !tr.IsResponsible(destA) {
		t.Fatal("expected A still responsible")
	}
}

// Scenario 6: a second writer cannot steal an already-TKO'd host.
func TestTrackerSecondWriterCannotSteal(t *testing.T) {
	tr := newTestTracker(testThreshold)
	for i := 0; i < 4; i++ {
		tr.RecordSoftFailure(destA)
	}

	if tr.RecordSoftFailure(destB) {
		t.Fatal("expected RecordSoftFailure(B) to fail to steal the TKO")
	}
	if tr.RecordHardFailure(destB) {
		t.Fatal("expected RecordHardFailure(B) to fail to steal the TKO")
	}
	if !tr.IsResponsible(destA) {
		t.Fatal("expected A to remain responsible")
	}
	if tr.RecordSuccess(destB) {
		t.Fatal("expected RecordSuccess(B) to return false")
	}
	if !tr.IsSoftTko() {
		t.Fatal("expected state to remain soft TKO")
	}
	if !tr.IsResponsible(destA) {
		t.Fatal("expected A to remain responsible after B's no-op success")
	}
}

// Scenario 7: teardown of the responsible destination clears the TKO.
func TestTrackerRemoveResponsibleDestinationClears(t *testing.T) {
	tr := newTestTracker(testThreshold)
	tr.RecordHardFailure(destA)

	if !tr.RemoveDestination(destA) {
		t.Fatal("expected RemoveDestination(A) to clear the TKO")
	}
	if tr.IsTko() {
		t.Fatal("expected tracker to no longer be TKO")
	}
	if got := tr.GlobalTkos().HardTkos(); got != 0 {
		t.Fatalf("hard_tkos = %d, want 0", got)
	}
}

// RemoveDestination by a non-responsible destination is a no-op.
func TestTrackerRemoveNonResponsibleDestinationIsNoop(t *testing.T) {
	tr := newTestTracker(testThreshold)
	tr.RecordHardFailure(destA)

	if tr.RemoveDestination(destB) {
		t.Fatal("expected RemoveDestination(B) to return false")
	}
	if !tr.IsHardTko() {
		t.Fatal("expected state to remain hard TKO")
	}
	if !tr.IsResponsible(destA) {
		t.Fatal("expected A to remain responsible")
	}
}

// Invariant 3 (entry half) + invariant 2: exactly one true per entry,
// and at most one destination is ever responsible at once, even under
// concurrent contention from many destinations racing the same host.
func TestTrackerConcurrentInvariants(t *testing.T) {
	const threshold = 4
	const nDestinations = 16
	const failuresPerDestination = 20

	tr := newTestTracker(threshold)

	dests := make([]testDest, nDestinations)
	for i := range dests {
		dests[i] = testDest{hostKey: "shared", token: Token((i + 1) * 0x1000)}
	}

	var mu sync.Mutex
	acquisitions := 0

	var wg sync.WaitGroup
	for _, d := range dests {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < failuresPerDestination; i++ {
				if tr.RecordSoftFailure(d) {
					mu.Lock()
					acquisitions++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if acquisitions != 1 {
		t.Fatalf("expected exactly one acquiring RecordSoftFailure call, got %d", acquisitions)
	}

	responsibleCount := 0
	for _, d := range dests {
		if tr.IsResponsible(d) {
			responsibleCount++
		}
	}
	if responsibleCount > 1 {
		t.Fatalf("expected at most one responsible destination, got %d", responsibleCount)
	}

	if got := tr.GlobalTkos().SoftTkos(); got != 1 {
		t.Fatalf("soft_tkos = %d, want 1 (no permanent over/under count from contention)", got)
	}
	if got := tr.GlobalTkos().HardTkos(); got != 0 {
		t.Fatalf("hard_tkos = %d, want 0", got)
	}
}

// Invariant 5: counters are never negative, driven through a mixed
// concurrent workload of soft failures, hard failures, and successes
// from destinations that share one host key, and so one Tracker and
// its map's Counters.
func TestTrackerCountersNeverNegative(t *testing.T) {
	m := NewTrackerMap()
	const nHosts = 8
	const ops = 50

	var wg sync.WaitGroup
	for h := 0; h < nHosts; h++ {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := testDest{hostKey: "host", token: Token((h + 1) * 0x1000)}
			handle := m.UpdateTracker(d, testThreshold)
			defer handle.Release()
			tr := handle.Tracker()
			for i := 0; i < ops; i++ {
				switch i % 3 {
				case 0:
					tr.RecordSoftFailure(d)
				case 1:
					tr.RecordHardFailure(d)
				case 2:
					tr.RecordSuccess(d)
				}
			}
		}()
	}
	wg.Wait()

	if m.GlobalTkos().SoftTkos() < 0 {
		t.Fatalf("soft_tkos went negative: %d", m.GlobalTkos().SoftTkos())
	}
	if m.GlobalTkos().HardTkos() < 0 {
		t.Fatalf("hard_tkos went negative: %d", m.GlobalTkos().HardTkos())
	}
}
