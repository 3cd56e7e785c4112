// Package metrics exports run, step and ingestion counters to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petrijr/opsflow/pkg/api"
)

const namespace = "opsflow"

// Observer is an api.Observer backed by Prometheus collectors. It also
// records dropped inbound events for the ingestion loop.
type Observer struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	activeRuns    prometheus.Gauge
	stepDuration  *prometheus.HistogramVec
	stepRetries   *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
}

var _ api.Observer = (*Observer)(nil)

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry so tests never collide on the global one.
func New(reg prometheus.Registerer) (*Observer, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	o := &Observer{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Workflow runs spawned.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Workflow runs that reached a terminal status.",
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Workflow runs currently executing.",
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Node handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type", "outcome"}),
		stepRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Node dispatches scheduled for retry.",
		}, []string{"node_type"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Inbound events that did not spawn a run.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{
		o.runsStarted, o.runsFinished, o.activeRuns, o.stepDuration, o.stepRetries, o.eventsDropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) OnRunStart(ctx context.Context, run *api.RunState) {
	o.runsStarted.Inc()
	o.activeRuns.Inc()
}

func (o *Observer) OnRunCompleted(ctx context.Context, run *api.RunState) {
	o.runsFinished.WithLabelValues(string(api.StatusCompleted)).Inc()
	o.activeRuns.Dec()
}

func (o *Observer) OnRunFailed(ctx context.Context, run *api.RunState, err error) {
	o.runsFinished.WithLabelValues(string(api.StatusFailed)).Inc()
	o.activeRuns.Dec()
}

func (o *Observer) OnStepStart(ctx context.Context, run *api.RunState, node api.Node) {}

func (o *Observer) OnStepCompleted(ctx context.Context, run *api.RunState, node api.Node, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.stepDuration.WithLabelValues(string(node.Type), outcome).Observe(d.Seconds())
}

func (o *Observer) OnStepRetry(ctx context.Context, run *api.RunState, node api.Node, retries int, delay time.Duration) {
	o.stepRetries.WithLabelValues(string(node.Type)).Inc()
}

// EventDropped counts an inbound event the ingestion loop discarded.
func (o *Observer) EventDropped(reason string) {
	o.eventsDropped.WithLabelValues(reason).Inc()
}
