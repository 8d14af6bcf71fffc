package stm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Commit outcome counters, mirrored in-process (via go.uber.org/atomic) so
// CurrentStats() works without a Prometheus scrape — handy in tests that just
// want to assert "this committed" without standing up an HTTP handler.
var (
	committedTotal       atomic.Uint64
	abortedLockTotal     atomic.Uint64
	abortedValidateTotal atomic.Uint64
	rerunTotal           atomic.Uint64
	waiterNotifications  atomic.Uint64
)

var (
	commitOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostm",
		Subsystem: "commit",
		Name:      "outcomes_total",
		Help:      "Count of commit attempts by outcome.",
	}, []string{"outcome"})

	writeSetSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gostm",
		Subsystem: "commit",
		Name:      "write_set_size",
		Help:      "Size of the write set of committing transactions.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	waiterNotifyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gostm",
		Subsystem: "retry",
		Name:      "waiter_notifications_total",
		Help:      "Count of TVar waiter-set notifications issued.",
	})
)

var registerOnce sync.Once

// registerMetrics registers the package's collectors against reg. Safe to
// call repeatedly; only the first caller's registerer wins, matching the
// "lazy, once, on first use" pattern the pack's storage-engine code uses
// around prometheus.DefaultRegisterer so importing this package in tests
// never double-registers collectors.
func registerMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(commitOutcomes, writeSetSize, waiterNotifyTotal)
	})
}

// SetMetricsRegisterer registers gostm's collectors against reg. Call it
// once during process startup; omitting the call simply means the
// in-process CurrentStats() counters still work, just without a Prometheus
// scrape surface.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	registerMetrics(reg)
}

func recordWaiterNotification() {
	waiterNotifyTotal.Inc()
	waiterNotifications.Inc()
}

func recordOutcome(outcome string) {
	commitOutcomes.WithLabelValues(outcome).Inc()
	switch outcome {
	case "committed":
		committedTotal.Inc()
	case "aborted_lock":
		abortedLockTotal.Inc()
	case "aborted_validate":
		abortedValidateTotal.Inc()
	case "rerun":
		rerunTotal.Inc()
	}
}

// Stats is a point-in-time snapshot of commit-engine counters, usable
// without standing up a Prometheus scrape endpoint.
type Stats struct {
	Committed           uint64
	AbortedLock         uint64
	AbortedValidate     uint64
	Rerun               uint64
	WaiterNotifications uint64
}

// CurrentStats returns a snapshot of the package-level commit counters.
func CurrentStats() Stats {
	return Stats{
		Committed:           committedTotal.Load(),
		AbortedLock:         abortedLockTotal.Load(),
		AbortedValidate:     abortedValidateTotal.Load(),
		Rerun:               rerunTotal.Load(),
		WaiterNotifications: waiterNotifications.Load(),
	}
}
