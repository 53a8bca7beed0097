// Package identity mints the machine-word tokens destinations present
// to a tko.Tracker as their identity. A token must be unique among
// live destinations and leave its low bit free for the tracker's
// tagged encoding; this package guarantees both by minting from a
// Sonyflake generator and left-shifting the result by one bit.
package identity

import (
	"github.com/sony/sonyflake"

	"github.com/Hamster601/tkotracker/tko"
)

// Allocator mints unique tko.Token values for one process. A single
// Allocator should be shared by every destination constructor in a
// process so tokens stay unique across the whole fleet.
type Allocator struct {
	sf *sonyflake.Sonyflake
}

// NewAllocator returns an Allocator whose Sonyflake generator reports
// machineID as its machine identifier — callers that run more than
// one tkotracker process on the same host must give each a distinct
// machineID to keep tokens globally distinct. Token uniqueness is only
// required among live destinations within one process, so a constant
// machineID is fine for a single-process demo or test.
func NewAllocator(machineID uint16) *Allocator {
	st := sonyflake.Settings{
		MachineID: func() (uint16, error) { return machineID, nil },
	}
	return &Allocator{sf: sonyflake.NewSonyflake(st)}
}

// Next mints a fresh token. It returns an error only if the
// underlying Sonyflake generator is exhausted for the current time
// window, which in practice means the process minted an extraordinary
// number of tokens within the same few milliseconds.
func (a *Allocator) Next() (tko.Token, error) {
	id, err := a.sf.NextID()
	if err != nil {
		return 0, err
	}
	// Sonyflake IDs are already well clear of any realistic
	// tkoThreshold; the left shift only exists to guarantee the low
	// bit the tracker's encoding depends on is free.
	return tko.Token(id << 1), nil
}
