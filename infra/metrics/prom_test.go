package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/events"
	coremetrics "github.com/kilianp07/fuelops/core/metrics"
	"github.com/kilianp07/fuelops/internal/eventbus"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)

	res := []coremetrics.DispatchResult{
		{CompanyID: "C1", TaskType: "delivery", Outcome: "ACCEPTED", Success: true, Allocated: true, PlatformWorker: "W1", Candidates: 2, Confidence: 0.5},
		{CompanyID: "C1", TaskType: "delivery", Success: false, Candidates: 0},
	}
	require.NoError(t, sink.RecordDispatchResult(res))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.results.WithLabelValues("C1", "delivery", "ACCEPTED", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.results.WithLabelValues("C1", "delivery", "error", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.confidence))

	require.NoError(t, sink.RecordFlowRun(coremetrics.FlowRunEvent{FlowID: "dispatch", Step: "completed"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.flows.WithLabelValues("dispatch", "completed", "false")))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)
	assert.Same(t, first.results, second.results)
}

func TestEventCollectorRecordsFlowRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)

	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(events.DispatchEvent{DecisionID: "ignored"})
	bus.Publish(events.FlowEvent{FlowID: "dispatch", Step: "step_0_failed", Error: "no_candidates", Time: time.Now()})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.flows.WithLabelValues("dispatch", "step_0_failed", "true")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEventCollectorSkipsSinksWithoutFlows(t *testing.T) {
	bus := eventbus.New()
	StartEventCollector(context.Background(), bus, onlyDispatch{})
	assert.Equal(t, 0, bus.Subscribers())
}

type onlyDispatch struct{}

func (onlyDispatch) RecordDispatchResult([]coremetrics.DispatchResult) error { return nil }
