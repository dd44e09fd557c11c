package gateway

import (
	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/model"
)

// Error codes set in Output.ErrorCode.
const (
	CodeNoCandidates           = "no_candidates"
	CodeRejectedReasonRequired = "REJECTED_REASON_REQUIRED"
	CodeTaskNotFound           = "task_not_found"
	CodeInvalidTaskID          = "invalid_task_id"
	CodeAllocationConflict     = "allocation_conflict"
	CodeInternalError          = "internal_error"
)

// MsgNoCandidates is the display text of CodeNoCandidates.
const MsgNoCandidates = "no available candidate workers"

// DefaultStrategyVersion labels decisions of gateways built without one.
const DefaultStrategyVersion = "rule-v1"

// Input is one dispatch request from the business layer.
type Input struct {
	TaskID                   string `json:"task_id"`
	TaskType                 string `json:"task_type"`
	CompanyID                string `json:"company_id"`
	ActorID                  string `json:"actor_id"`
	BusinessProvidedWorkerID string `json:"business_provided_worker_id,omitempty"`
	RejectedReason           string `json:"rejected_reason,omitempty"`
	RejectedCategory         string `json:"rejected_category,omitempty"`
}

// CandidateView is a ranked candidate returned to the caller.
type CandidateView struct {
	WorkerID string   `json:"worker_id"`
	Name     string   `json:"name,omitempty"`
	Score    float64  `json:"score"`
	Skills   []string `json:"skills,omitempty"`
}

// Output is the result of Dispatch.
type Output struct {
	Success                      bool                          `json:"success"`
	DecisionID                   string                        `json:"decision_id"`
	PlatformSelectedWorker       string                        `json:"platform_selected_worker,omitempty"`
	PlatformRecommendation       *model.PlatformRecommendation `json:"platform_recommendation,omitempty"`
	PlatformRecommendationReason string                        `json:"platform_recommendation_reason,omitempty"`
	Candidates                   []CandidateView               `json:"candidates"`
	Trace                        *model.DecisionTrace          `json:"trace,omitempty"`
	BusinessOverride             bool                          `json:"business_override"`
	EffectiveWorker              string                        `json:"effective_worker,omitempty"`
	Allocated                    bool                          `json:"allocated"`
	Outcome                      model.Outcome                 `json:"outcome,omitempty"`
	Mode                         TakeoverMode                  `json:"mode"`
	ErrorCode                    string                        `json:"error_code,omitempty"`
	Error                        string                        `json:"error,omitempty"`
}

// Config tunes a Gateway.
type Config struct {
	Mode            TakeoverMode
	StrategyVersion string
	// Match, Evaluate and Allocate pin the capabilities resolved per call.
	// An empty Tenant is filled with the task's company.
	Match    capability.ResolveOptions
	Evaluate capability.ResolveOptions
	Allocate capability.ResolveOptions
}

func (c *Config) setDefaults() {
	c.Mode = ParseMode(string(c.Mode))
	if c.StrategyVersion == "" {
		c.StrategyVersion = DefaultStrategyVersion
	}
}
