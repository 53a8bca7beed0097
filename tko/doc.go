// Package tko implements the fault-detection core for a routing proxy:
// per-destination failure accounting, TKO (technical knock-out) state,
// and a registry that hands out shared trackers keyed by host identity.
//
// The hot path (recordSuccess against a healthy host) never takes a
// lock. Once a host enters TKO, exactly one destination is responsible
// for it and every other caller's writes are no-ops until that
// destination clears or upgrades the state.
package tko
