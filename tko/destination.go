package tko

// Token identifies a live destination. It must be stable for the
// destination's lifetime, unique among live destinations, and have a
// free low bit — callers obtain one from an identity.Allocator (or
// any other source meeting those constraints) rather than from this
// package, which stays agnostic to how tokens are minted.
type Token uint64

// Destination is the minimal surface the tracker needs from whatever
// object the router uses to represent a backend connection. Its full
// representation is deliberately out of scope for this package.
type Destination interface {
	// HostKey is the stable host:port identity trackers are registered
	// under. Two destinations with the same HostKey share one Tracker.
	HostKey() string
	// Token is this destination's machine-word identity, even-valued.
	Token() Token
}
