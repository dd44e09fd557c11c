package metrics

import "time"

// DispatchResult is one gateway call as seen by observability sinks.
type DispatchResult struct {
	DecisionID       string
	TaskID           string
	TaskType         string
	CompanyID        string
	Mode             string
	PlatformWorker   string
	EffectiveWorker  string
	Outcome          string
	Error            string
	Success          bool
	BusinessOverride bool
	Allocated        bool
	Candidates       int
	Confidence       float64
	Duration         time.Duration
	Time             time.Time
}

// MetricsSink records dispatch results for observability purposes.
type MetricsSink interface {
	RecordDispatchResult(results []DispatchResult) error
}

// FlowRunEvent captures the end state of an orchestration flow run.
type FlowRunEvent struct {
	FlowID  string
	EventID string
	Step    string
	Failed  bool
	Error   string
	Time    time.Time
}

// FlowRecorder records orchestration flow runs.
type FlowRecorder interface {
	RecordFlowRun(ev FlowRunEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatchResult([]DispatchResult) error { return nil }
func (NopSink) RecordFlowRun(FlowRunEvent) error            { return nil }
