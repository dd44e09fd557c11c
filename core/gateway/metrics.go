package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchTotal    *prometheus.CounterVec
	dispatchLatency  *prometheus.HistogramVec
	businessOverride *prometheus.CounterVec
	bypassAttempts   prometheus.Counter
)

func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_dispatch_total",
			Help: "Number of gateway dispatch calls by result",
		},
		[]string{"mode", "result"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_dispatch_duration_seconds",
			Help:    "Duration of gateway dispatch calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	override := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_business_override_total",
			Help: "Number of dispatches where the business worker differed from the platform pick",
		},
		[]string{"mode", "outcome"},
	)
	bypass := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_bypass_attempts_total",
			Help: "Number of dispatches that ended in an internal error",
		},
	)
	return total, lat, override, bypass
}

func init() {
	dispatchTotal, dispatchLatency, businessOverride, bypassAttempts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers gateway metrics on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchTotal, dispatchLatency, businessOverride, bypassAttempts)
}

// ResetMetrics recreates the collectors for tests and registers them on reg
// when it is not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchTotal, dispatchLatency, businessOverride, bypassAttempts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
