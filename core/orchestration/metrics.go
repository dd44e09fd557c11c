package orchestration

import "github.com/prometheus/client_golang/prometheus"

var (
	stepDuration *prometheus.HistogramVec
	stepRetries  *prometheus.CounterVec
	flowRuns     *prometheus.CounterVec
)

func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestration_step_duration_seconds",
			Help:    "Duration of orchestration steps including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flow", "step", "result"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestration_step_retries_total",
			Help: "Number of retried step attempts",
		},
		[]string{"flow", "step"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestration_flow_runs_total",
			Help: "Number of flow runs by result",
		},
		[]string{"flow", "result"},
	)
	return dur, retries, runs
}

func init() {
	stepDuration, stepRetries, flowRuns = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers orchestration metrics on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(stepDuration, stepRetries, flowRuns)
}

// ResetMetrics recreates the collectors for tests and registers them on reg
// when it is not nil.
func ResetMetrics(reg prometheus.Registerer) {
	stepDuration, stepRetries, flowRuns = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
