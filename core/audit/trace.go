package audit

import (
	"context"
	"time"

	"github.com/kilianp07/fuelops/core/model"
)

// TargetTask is the target type of entries about a task.
const TargetTask = "task"

// TraceWriter writes decision traces into a Log.
type TraceWriter struct {
	Log Log
	// Actor is used when the trace does not name the caller.
	Actor string
}

// WriteTrace appends trace as a PLATFORM_DECISION_TRACE entry targeting the
// task. The entry is stamped with the trace timestamp.
func (w TraceWriter) WriteTrace(ctx context.Context, trace model.DecisionTrace) error {
	actor := w.Actor
	if trace.InputSummary.ActorID != "" {
		actor = trace.InputSummary.ActorID
	}
	e, err := NewEntry(actor, ActionDecisionTrace, TargetTask, trace.InputSummary.TaskID, trace)
	if err != nil {
		return err
	}
	if !trace.Timestamp.IsZero() {
		e.CreatedAt = trace.Timestamp
	}
	return w.Log.Append(ctx, e)
}

// Traces decodes the decision traces matching q.
func Traces(ctx context.Context, l Log, q Query) ([]model.DecisionTrace, error) {
	q.Action = ActionDecisionTrace
	entries, err := l.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.DecisionTrace, 0, len(entries))
	for _, e := range entries {
		var tr model.DecisionTrace
		if err := e.Decode(&tr); err != nil {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

func unixNanoUTC(ns int64) time.Time { return time.Unix(0, ns).UTC() }
