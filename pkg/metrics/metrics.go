// Package metrics holds the Prometheus collectors for remote calls and the
// sync loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "levelreq"

// Outcome labels used on remote call metrics.
const (
	OutcomeOK          = "ok"
	OutcomeUnreachable = "unreachable"
	OutcomeRejected    = "rejected"
)

// Metrics groups every collector the engine updates.
type Metrics struct {
	RemoteRequests *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	SyncTicks      *prometheus.CounterVec
	QueueLength    prometheus.Gauge
	HistoryLength  prometheus.Gauge
	Superseded     prometheus.Counter
}

// New registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemoteRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "requests_total",
				Help:      "Remote endpoint calls by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		RemoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "request_duration_seconds",
				Help:      "Remote endpoint call latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		SyncTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "ticks_total",
				Help:      "Poll ticks by result (replaced, unchanged, failed, skipped, discarded).",
			},
			[]string{"result"},
		),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "queue_length",
			Help:      "Records currently in the local queue.",
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "history_length",
			Help:      "Records in the local history.",
		}),
		Superseded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "superseded_total",
			Help:      "Queue records dropped because a newer remote snapshot no longer held them.",
		}),
	}
}

// Noop returns collectors registered on a private registry, for callers that
// do not export metrics.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

// OrNoop returns m, or private collectors when m is nil.
func OrNoop(m *Metrics) *Metrics {
	if m == nil {
		return Noop()
	}
	return m
}
