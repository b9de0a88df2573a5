// Package metric exports procedure lifecycle counters to Prometheus.
package metric

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/rrcproc/internal/proc"
)

const (
	namespace = "rrcproc"
	subsystem = "procedure"
)

// Observer is a proc.Observer that counts lifecycle transitions.
type Observer struct {
	launches *prometheus.CounterVec // Launches by kind
	rejected *prometheus.CounterVec // Busy launches by kind
	joins    *prometheus.CounterVec // Waiters attached by target kind
	outcomes *prometheus.CounterVec // Terminal outcomes by kind and outcome
	ignored  *prometheus.CounterVec // Events with no subscriber
	active   *prometheus.GaugeVec   // Running procedures by kind
	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) (*Observer, error) {
	o := &Observer{
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "launches_total",
			Help:      "Total procedure launches",
		}, []string{"kind"}),

		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_total",
			Help:      "Total launches rejected because the slot was busy",
		}, []string{"kind"}),

		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "joins_total",
			Help:      "Total waiters joined to a running procedure",
		}, []string{"kind"}),

		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outcomes_total",
			Help:      "Total terminal outcomes",
		}, []string{"kind", "outcome"}),

		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ignored_events_total",
			Help:      "Total events delivered with no subscriber",
		}, []string{"event"}),

		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Procedures currently running (1=active, 0=idle)",
		}, []string{"kind"}),

		gatherer: reg,
	}

	collectors := []prometheus.Collector{o.launches, o.rejected, o.joins, o.outcomes, o.ignored, o.active}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register procedure metrics: %w", err)
		}
	}
	return o, nil
}

// Observe implements proc.Observer.
func (o *Observer) Observe(rec proc.Record) {
	kind := string(rec.Kind)

	switch rec.Type {
	case proc.RecordLaunched:
		o.launches.WithLabelValues(kind).Inc()
		o.active.WithLabelValues(kind).Set(1)
	case proc.RecordRejected:
		o.rejected.WithLabelValues(kind).Inc()
	case proc.RecordJoined:
		o.joins.WithLabelValues(kind).Inc()
	case proc.RecordResolved, proc.RecordCancelled:
		o.outcomes.WithLabelValues(kind, rec.Outcome).Inc()
		o.active.WithLabelValues(kind).Set(0)
	case proc.RecordIgnored:
		o.ignored.WithLabelValues(rec.Cause).Inc()
	}
}

// WriteText writes every gathered family in the Prometheus text format.
func (o *Observer) WriteText(w io.Writer) error {
	families, err := o.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
