package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fuelops/core/metrics"
)

// PromSink records per-company dispatch results and flow runs in Prometheus.
type PromSink struct {
	results    *prometheus.CounterVec
	candidates *prometheus.HistogramVec
	confidence *prometheus.HistogramVec
	flows      *prometheus.CounterVec
}

// NewPromSinkWithRegistry registers metrics on the provided registerer. The
// /metrics endpoint is served separately by StartPromServer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_company_dispatch_results_total",
		Help: "Dispatch results per company, task type and outcome",
	}, []string{"company_id", "task_type", "outcome", "allocated"})
	candidates := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_dispatch_candidates",
		Help:    "Number of candidate workers considered per decision",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	}, []string{"task_type"})
	confidence := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_dispatch_confidence",
		Help:    "Confidence of the platform pick",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	}, []string{"task_type"})
	flows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_flow_runs_observed_total",
		Help: "Orchestration flow runs seen on the event bus",
	}, []string{"flow", "step", "failed"})

	var err error
	if results, err = register(reg, results); err != nil {
		return nil, err
	}
	if candidates, err = register(reg, candidates); err != nil {
		return nil, err
	}
	if confidence, err = register(reg, confidence); err != nil {
		return nil, err
	}
	if flows, err = register(reg, flows); err != nil {
		return nil, err
	}
	return &PromSink{results: results, candidates: candidates, confidence: confidence, flows: flows}, nil
}

// register returns the already registered collector when one with the same
// descriptor exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatchResult updates the counters and histograms for each result.
func (s *PromSink) RecordDispatchResult(res []coremetrics.DispatchResult) error {
	for _, r := range res {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "none"
		}
		if !r.Success {
			outcome = "error"
		}
		s.results.WithLabelValues(r.CompanyID, r.TaskType, outcome, strconv.FormatBool(r.Allocated)).Inc()
		s.candidates.WithLabelValues(r.TaskType).Observe(float64(r.Candidates))
		if r.PlatformWorker != "" {
			s.confidence.WithLabelValues(r.TaskType).Observe(r.Confidence)
		}
	}
	return nil
}

// RecordFlowRun counts a finished flow run.
func (s *PromSink) RecordFlowRun(ev coremetrics.FlowRunEvent) error {
	s.flows.WithLabelValues(ev.FlowID, ev.Step, strconv.FormatBool(ev.Failed)).Inc()
	return nil
}
