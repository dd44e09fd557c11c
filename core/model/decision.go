package model

import "time"

// DecisionContext is the frozen input of one decision. Build it with
// NewDecisionContext and take a new snapshot for every decision.
type DecisionContext struct {
	RequestID       string         `json:"request_id"`
	Task            TaskModel      `json:"task"`
	Workers         []WorkerModel  `json:"workers"`
	StrategyVersion string         `json:"strategy_version"`
	TenantID        string         `json:"tenant_id,omitempty"`
	RegionID        string         `json:"region_id,omitempty"`
	Constraints     map[string]any `json:"constraints,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// NewDecisionContext snapshots the task and workers so later changes by the
// caller do not leak into the decision.
func NewDecisionContext(requestID string, task TaskModel, workers []WorkerModel, strategyVersion string) DecisionContext {
	ws := make([]WorkerModel, len(workers))
	for i, w := range workers {
		ws[i] = w.Clone()
	}
	return DecisionContext{
		RequestID:       requestID,
		Task:            task.Clone(),
		Workers:         ws,
		StrategyVersion: strategyVersion,
		TenantID:        task.Context.CompanyID,
	}
}

// Snapshot returns a copy safe to hand to a strategy.
func (dc DecisionContext) Snapshot() DecisionContext {
	cp := dc
	cp.Task = dc.Task.Clone()
	cp.Workers = make([]WorkerModel, len(dc.Workers))
	for i, w := range dc.Workers {
		cp.Workers[i] = w.Clone()
	}
	cp.Constraints = cloneMap(dc.Constraints)
	cp.Meta = cloneMap(dc.Meta)
	return cp
}

// Worker looks up a candidate worker by id.
func (dc DecisionContext) Worker(id string) (WorkerModel, bool) {
	for _, w := range dc.Workers {
		if w.ID == id {
			return w, true
		}
	}
	return WorkerModel{}, false
}

// StrategyResult is what a strategy proposes for a decision.
type StrategyResult struct {
	Strategy       string                  `json:"strategy"`
	WorkerID       string                  `json:"worker_id,omitempty"`
	Scores         map[string]float64      `json:"scores,omitempty"`
	Candidates     []string                `json:"candidates"`
	Recommendation *PlatformRecommendation `json:"recommendation,omitempty"`
}

// Conflict records one adjudication between strategy proposals.
type Conflict struct {
	Strategy   string `json:"strategy"`
	WorkerID   string `json:"worker_id"`
	Resolution string `json:"resolution"`
}

// DecisionOutput is the final result stored in a trace.
type DecisionOutput struct {
	WorkerID string `json:"worker_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// InputSummary is the condensed decision input kept in a trace.
type InputSummary struct {
	TaskID     string   `json:"task_id"`
	TaskType   TaskType `json:"task_type"`
	Skill      string   `json:"skill"`
	Candidates int      `json:"candidates"`
	TenantID   string   `json:"tenant_id,omitempty"`
	RegionID   string   `json:"region_id,omitempty"`
	ActorID    string   `json:"actor_id,omitempty"`
}

// Summarize condenses the decision context for a trace. The actor comes from
// Meta["actor_id"].
func (dc DecisionContext) Summarize() InputSummary {
	actor, _ := dc.Meta["actor_id"].(string)
	return InputSummary{
		TaskID:     dc.Task.ID,
		TaskType:   dc.Task.Type,
		Skill:      dc.Task.Skill(),
		Candidates: len(dc.Workers),
		TenantID:   dc.TenantID,
		RegionID:   dc.RegionID,
		ActorID:    actor,
	}
}

// DecisionTrace is the append-only record of one decision.
type DecisionTrace struct {
	DecisionID      string          `json:"decision_id"`
	RequestID       string          `json:"request_id"`
	DecisionType    string          `json:"decision_type"`
	StrategyVersion string          `json:"strategy_version"`
	InputSummary    InputSummary    `json:"input_summary"`
	StrategyOutput  *StrategyResult `json:"strategy_output,omitempty"`
	Conflicts       []Conflict      `json:"conflicts"`
	DecisionOutput  DecisionOutput  `json:"decision_output"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Outcome classifies how a completed dispatch ended.
type Outcome string

const (
	OutcomePlatformAccepted Outcome = "platform_accepted"
	OutcomeBusinessOverride Outcome = "business_override"
	OutcomePlatformEnforced Outcome = "platform_enforced"
)

// SampleDecision holds the assignment facts of a sample.
type SampleDecision struct {
	DecisionID       string `json:"decision_id"`
	WorkerID         string `json:"worker_id"`
	PlatformWorkerID string `json:"platform_worker_id"`
	BusinessWorkerID string `json:"business_worker_id,omitempty"`
	TakeoverMode     string `json:"takeover_mode"`
	BusinessOverride bool   `json:"business_override"`
	RejectedReason   string `json:"rejected_reason,omitempty"`
	RejectedCategory string `json:"rejected_category,omitempty"`
}

// DecisionSample is one training record written per completed dispatch.
type DecisionSample struct {
	SampleID        string             `json:"sample_id"`
	TaskSnapshot    TaskModel          `json:"task_snapshot"`
	WorkerSnapshot  *WorkerModel       `json:"worker_snapshot,omitempty"`
	StrategyVersion string             `json:"strategy_version"`
	Decision        SampleDecision     `json:"decision"`
	Outcome         Outcome            `json:"outcome"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}
