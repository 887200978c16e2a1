package allocator

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

const metricsNamespace = "graylogic_installer"

// PrometheusRecorder is a Recorder backed by Prometheus collectors.
type PrometheusRecorder struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	scannedPorts  *prometheus.CounterVec
	locates       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	commits       *prometheus.CounterVec
}

// NewPrometheusRecorder creates the allocator collectors and registers them
// with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_fetches_total",
			Help:      "Snapshot fetches by direction and result.",
		}, []string{"direction", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_fetch_duration_seconds",
			Help:      "Time spent fetching a snapshot from the provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
		scannedPorts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scanned_ports_total",
			Help:      "Ports evaluated by the capacity scanner, by state.",
		}, []string{"direction", "state"}),
		locates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "locates_total",
			Help:      "Placement lookups by direction and outcome.",
		}, []string{"direction", "found"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_cache_lookups_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "placement_commits_total",
			Help:      "Commit announcements received, by direction.",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{
		r.fetches, r.fetchDuration, r.scannedPorts, r.locates, r.cacheLookups, r.commits,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveFetch implements Recorder.
func (r *PrometheusRecorder) ObserveFetch(dir hardware.Direction, elapsed time.Duration, err error) {
	r.fetches.WithLabelValues(string(dir), fetchResult(err)).Inc()
	r.fetchDuration.WithLabelValues(string(dir)).Observe(elapsed.Seconds())
}

// ObserveScan implements Recorder.
func (r *PrometheusRecorder) ObserveScan(dir hardware.Direction, ports []PortAvailability) {
	for _, p := range ports {
		state := "full"
		switch {
		case p.Malformed:
			state = "malformed"
		case p.Available:
			state = "available"
		}
		r.scannedPorts.WithLabelValues(string(dir), state).Inc()
	}
}

// ObserveLocate implements Recorder.
func (r *PrometheusRecorder) ObserveLocate(dir hardware.Direction, found bool) {
	r.locates.WithLabelValues(string(dir), strconv.FormatBool(found)).Inc()
}

// ObserveCache implements Recorder.
func (r *PrometheusRecorder) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCommit counts a commit announcement. An empty direction means the
// announcement covered both directions.
func (r *PrometheusRecorder) ObserveCommit(dir hardware.Direction) {
	label := string(dir)
	if label == "" {
		label = "all"
	}
	r.commits.WithLabelValues(label).Inc()
}

func fetchResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, hardware.ErrNotFound):
		return "not_found"
	case errors.Is(err, hardware.ErrMalformedSnapshot):
		return "malformed"
	default:
		return "transport_failure"
	}
}
