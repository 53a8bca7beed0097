package tko

import "go.uber.org/atomic"

// Counters holds the process-wide count of destinations currently in
// soft and hard TKO. A single Counters is shared by every Tracker that
// belongs to the same TrackerMap.
type Counters struct {
	softTkos *atomic.Int64
	hardTkos *atomic.Int64
}

// NewCounters returns a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{
		softTkos: atomic.NewInt64(0),
		hardTkos: atomic.NewInt64(0),
	}
}

// SoftTkos is the number of destinations currently in soft TKO.
func (c *Counters) SoftTkos() int64 { return c.softTkos.Load() }

// HardTkos is the number of destinations currently in hard TKO.
func (c *Counters) HardTkos() int64 { return c.hardTkos.Load() }

func (c *Counters) incrSoftTko() { c.softTkos.Inc() }

func (c *Counters) decrSoftTko() {
	if c.softTkos.Dec() < 0 {
		panic("tko: soft tko counter decremented below zero")
	}
}

func (c *Counters) incrHardTko() { c.hardTkos.Inc() }

func (c *Counters) decrHardTko() {
	if c.hardTkos.Dec() < 0 {
		panic("tko: hard tko counter decremented below zero")
	}
}
