// Package metrics exposes Prometheus instrumentation for the sync daemon.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all sync daemon metrics.
type Registry struct {
	// Sync cycle metrics
	SyncTotal    *prometheus.CounterVec
	SyncErrors   *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
	LastSync     *prometheus.GaugeVec

	// Address set metrics
	SetSize *prometheus.GaugeVec

	// Evaluation metrics
	CandidatesSeen  *prometheus.CounterVec
	AddressesDenied *prometheus.CounterVec

	// System metrics
	Uptime prometheus.Gauge
	State  prometheus.Gauge
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.SyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_sync_total",
		Help: "Total sync cycles executed per tier",
	}, []string{"tier"})

	r.SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_sync_errors_total",
		Help: "Total sync cycles that failed, by tier and stage",
	}, []string{"tier", "stage"})

	r.SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_sync_duration_seconds",
		Help:    "Duration of sync cycles per tier",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})

	r.LastSync = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "warden_last_sync_timestamp",
		Help: "Unix timestamp of the last successful sync per tier",
	}, []string{"tier"})

	r.SetSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "warden_set_size",
		Help: "Number of addresses currently installed per set",
	}, []string{"set"})

	r.CandidatesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_candidates_total",
		Help: "Total candidate users evaluated per tier",
	}, []string{"tier"})

	r.AddressesDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_addresses_denied_total",
		Help: "Addresses excluded from sync, by reason",
	}, []string{"reason"})

	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_uptime_seconds",
		Help: "Daemon uptime in seconds",
	})

	r.State = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_state",
		Help: "Daemon lifecycle state (0=starting, 1=running, 2=stopping)",
	})

	return r
}

// RecordSync records the outcome of one sync cycle for a tier.
func (r *Registry) RecordSync(tier, set string, size int, duration time.Duration, err error) {
	r.SyncTotal.WithLabelValues(tier).Inc()
	r.SyncDuration.WithLabelValues(tier).Observe(duration.Seconds())
	if err != nil {
		return
	}
	r.SetSize.WithLabelValues(set).Set(float64(size))
	r.LastSync.WithLabelValues(tier).Set(float64(time.Now().Unix()))
}

// RecordSyncError records a failed sync stage for a tier.
func (r *Registry) RecordSyncError(tier, stage string) {
	r.SyncErrors.WithLabelValues(tier, stage).Inc()
}
