package syscmd

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Execution outcomes used as metric labels.
const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeLaunch     = "launch_failure"
	outcomeTerminated = "terminated"
)

var (
	registerOnce sync.Once

	executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syscmd",
			Subsystem: "exec",
			Name:      "executions_total",
			Help:      "System command executions by outcome.",
		},
		[]string{"outcome"},
	)
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "syscmd",
			Subsystem: "exec",
			Name:      "execution_duration_seconds",
			Help:      "System command wall time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "syscmd",
			Subsystem: "exec",
			Name:      "in_flight",
			Help:      "System commands currently running.",
		},
	)
)

// RegisterMetrics registers the executor collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(executions, executionDuration, inFlight)
	})
}

func recordExecution(outcome string, elapsed time.Duration) {
	RegisterMetrics()
	executions.WithLabelValues(outcome).Inc()
	executionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
