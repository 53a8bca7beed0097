package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hamster601/tkotracker/config"
	"github.com/Hamster601/tkotracker/destination"
	"github.com/Hamster601/tkotracker/identity"
	"github.com/Hamster601/tkotracker/metric"
	"github.com/Hamster601/tkotracker/pkg/logs"
	"github.com/Hamster601/tkotracker/tko"
)

var (
	helpFlag bool
	cfgPath  string
)

func init() {
	flag.BoolVar(&helpFlag, "help", false, "this help")
	flag.StringVar(&cfgPath, "config", "tkoprobe.toml", "application config file")
	flag.Usage = usage
}

func main() {
	flag.Parse()
	if helpFlag {
		flag.Usage()
		return
	}

	cfg, err := config.NewConfigWithFile(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := logs.Initialize(cfg.LoggerConfig); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	trackerMap := tko.NewTrackerMap()
	recorder := metric.NewRecorder(trackerMap)

	alloc := identity.NewAllocator(cfg.MachineID)
	fleet, handles, err := buildFleet(alloc, trackerMap, cfg.TkoThreshold, 8)
	if err != nil {
		logs.Errorf("build fleet: %s", err.Error())
		os.Exit(1)
	}
	defer func() {
		for _, h := range handles {
			h.Release()
		}
	}()

	stop := make(chan struct{})
	go simulate(fleet, handles, stop)
	go report(trackerMap, recorder, stop)
	go serveMetrics(cfg.ExporterAddr)

	logs.Infof("tkoprobe listening for metrics on %s", cfg.ExporterAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigCh
	logs.Infof("tkoprobe stopping, signal: %s", sig.String())
	close(stop)
}

// buildFleet mints n destinations sharing one tracker map and
// registers each of them, returning the handles the caller must
// release on shutdown.
func buildFleet(alloc *identity.Allocator, m *tko.TrackerMap, threshold uint64, n int) ([]*destination.Destination, []*tko.Handle, error) {
	fleet := make([]*destination.Destination, 0, n)
	handles := make([]*tko.Handle, 0, n)
	for i := 0; i < n; i++ {
		d, err := destination.New(alloc, "10.0.0.1", 9000+i)
		if err != nil {
			return nil, nil, err
		}
		fleet = append(fleet, d)
		handles = append(handles, m.UpdateTracker(d, threshold))
	}
	return fleet, handles, nil
}

// simulate drives synthetic success/failure traffic against the fleet
// until stop is closed, standing in for the real routing-proxy request
// path this library is meant to observe. It reuses the handles the
// caller registered at startup rather than re-acquiring one per tick.
func simulate(fleet []*destination.Destination, handles []*tko.Handle, stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(1))

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			i := rng.Intn(len(fleet))
			d := fleet[i]
			tr := handles[i].Tracker()
			switch {
			case rng.Intn(20) == 0:
				if tr.RecordHardFailure(d) {
					logs.Warnf("%s entered hard TKO", d.HostKey())
				}
			case rng.Intn(4) == 0:
				if tr.RecordSoftFailure(d) {
					logs.Warnf("%s entered soft TKO", d.HostKey())
				}
			default:
				if tr.RecordSuccess(d) {
					logs.Infof("%s recovered", d.HostKey())
				}
			}
		}
	}
}

// report periodically prints the current suspect-server set and
// samples the Prometheus gauges, standing in for an external scraper.
func report(m *tko.TrackerMap, recorder *metric.Recorder, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			recorder.Sample()
			for host, s := range m.GetSuspectServers() {
				logs.Infof("suspect %s: tko=%v consecutive_failures=%d", host, s.IsTko, s.ConsecutiveFailureCount)
			}
		}
	}
}

// serveMetrics binds the Prometheus exporter endpoint. It logs and
// returns on failure rather than killing the process: metrics are an
// observability convenience, not part of this binary's contract.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logs.Errorf("metrics server stopped: %s", err.Error())
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tkoprobe: a demo host-health tracker
	Usage: tkoprobe [-config filename]
	Options:
	`)
	flag.PrintDefaults()
}
