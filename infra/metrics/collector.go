package metrics

import (
	"context"

	"github.com/kilianp07/fuelops/core/events"
	coremetrics "github.com/kilianp07/fuelops/core/metrics"
	"github.com/kilianp07/fuelops/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records flow runs on
// sinks that support them. Dispatch results reach sinks directly from the
// gateway. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.FlowRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, isFlow := ev.(events.FlowEvent); isFlow {
					_ = rec.RecordFlowRun(coremetrics.FlowRunEvent{
						FlowID:  e.FlowID,
						EventID: e.EventID,
						Step:    e.Step,
						Failed:  e.Error != "",
						Error:   e.Error,
						Time:    e.Time,
					})
				}
			}
		}
	}()
}
