package agentflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for runs, nodes and fan-out calls.
// A nil *Metrics is valid and records nothing, so instrumentation stays
// optional on every component.
type Metrics struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	interrupts    prometheus.Counter
	nodeDuration  *prometheus.HistogramVec
	nodeFailures  *prometheus.CounterVec
	dispatchCalls *prometheus.CounterVec
}

// NewMetrics creates and registers the collector set on the given
// registerer (pass prometheus.DefaultRegisterer for the default).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_runs_started_total",
			Help: "Total number of runs started",
		}),
		runsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_runs_completed_total",
			Help: "Total number of runs completed",
		}, []string{"status"}),
		interrupts: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_interrupts_total",
			Help: "Total number of runs suspended for human input",
		}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentflow_node_duration_seconds",
			Help:    "Node execution duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_node_failures_total",
			Help: "Total number of node execution failures",
		}, []string{"step"}),
		dispatchCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_dispatch_calls_total",
			Help: "Total number of fan-out calls to worker agents",
		}, []string{"agent", "result"}),
	}
}

// RecordRunStarted counts one started run.
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

// RecordRunCompleted counts one completed run by final status.
func (m *Metrics) RecordRunCompleted(status string) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
}

// RecordInterrupt counts one suspension.
func (m *Metrics) RecordInterrupt() {
	if m == nil {
		return
	}
	m.interrupts.Inc()
}

// ObserveNode records one node execution.
func (m *Metrics) ObserveNode(step string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(step).Observe(duration.Seconds())
	if err != nil {
		m.nodeFailures.WithLabelValues(step).Inc()
	}
}

// RecordDispatch counts one fan-out call by result class.
func (m *Metrics) RecordDispatch(agent, result string) {
	if m == nil {
		return
	}
	m.dispatchCalls.WithLabelValues(agent, result).Inc()
}
