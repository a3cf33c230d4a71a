// Package metrics exposes Prometheus collectors for AG-UI runs served by this process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agui"

// Outcome labels of finished runs
const (
	OutcomeFinished  = "finished"
	OutcomeErrored   = "errored"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// Metrics records run activity. A nil *Metrics records nothing.
type Metrics struct {
	runsStarted  prometheus.Counter
	runsEnded    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	eventsSent   *prometheus.CounterVec
	runsInFlight prometheus.Gauge
}

// New registers the collectors with reg. Registering twice with the same registry
// reuses the collectors already there.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Runs accepted by the server.",
		}),
		runsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs that ended, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of runs, by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_sent_total",
			Help:      "Events written to clients, by event type and transport.",
		}, []string{"type", "transport"}),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Runs currently streaming.",
		}),
	}

	m.runsStarted = register(reg, m.runsStarted)
	m.runsEnded = register(reg, m.runsEnded)
	m.runDuration = register(reg, m.runDuration)
	m.eventsSent = register(reg, m.eventsSent)
	m.runsInFlight = register(reg, m.runsInFlight)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RunStarted marks a run as accepted and in flight
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
	m.runsInFlight.Inc()
}

// RunEnded records the outcome of a run started with RunStarted
func (m *Metrics) RunEnded(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsInFlight.Dec()
	m.runsEnded.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RunRejected records a run refused before it started
func (m *Metrics) RunRejected() {
	if m == nil {
		return
	}
	m.runsEnded.WithLabelValues(OutcomeRejected).Inc()
}

// EventSent counts one event written by a transport
func (m *Metrics) EventSent(eventType, transport string) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(eventType, transport).Inc()
}
