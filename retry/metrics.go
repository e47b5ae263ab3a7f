package retry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	policyException = "exception"
	policyPredicate = "predicate"

	resultSuccess    = "success"
	resultExhausted  = "exhausted"
	resultPropagated = "propagated"
	resultAborted    = "aborted"
)

var (
	registerOnce sync.Once

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syscmd",
			Subsystem: "retry",
			Name:      "calls_total",
			Help:      "Retry policy invocations by policy and result.",
		},
		[]string{"policy", "result"},
	)
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syscmd",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Operation invocations made by retry policies.",
		},
		[]string{"policy"},
	)
)

// RegisterMetrics registers the retry collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(callsTotal, attemptsTotal)
	})
}

func recordCall(policy, result string) {
	RegisterMetrics()
	callsTotal.WithLabelValues(policy, result).Inc()
}

func recordAttempt(policy string) {
	RegisterMetrics()
	attemptsTotal.WithLabelValues(policy).Inc()
}
