// Package metric exposes tko.Counters and registry suspect-server
// counts to Prometheus. Plain atomics stay the source of truth; these
// gauges are a read-side projection refreshed by Sample.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Hamster601/tkotracker/tko"
)

var (
	softTkoGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tkotracker_soft_tko_total",
			Help: "Number of destinations currently in soft TKO",
		},
	)

	hardTkoGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tkotracker_hard_tko_total",
			Help: "Number of destinations currently in hard TKO",
		},
	)

	suspectServersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tkotracker_suspect_servers_total",
			Help: "Number of destinations with at least one failure since their last success",
		},
	)
)

// Recorder periodically projects a TrackerMap's live state into the
// package's Prometheus gauges.
type Recorder struct {
	trackerMap *tko.TrackerMap
}

// NewRecorder returns a Recorder sampling m.
func NewRecorder(m *tko.TrackerMap) *Recorder {
	return &Recorder{trackerMap: m}
}

// Sample refreshes the gauges from the current state of the
// recorder's TrackerMap. It is safe to call from any goroutine and at
// any rate; it never blocks on the tracker hot path.
func (r *Recorder) Sample() {
	counters := r.trackerMap.GlobalTkos()
	softTkoGauge.Set(float64(counters.SoftTkos()))
	hardTkoGauge.Set(float64(counters.HardTkos()))
	suspectServersGauge.Set(float64(r.trackerMap.GetSuspectServersCount()))
}
