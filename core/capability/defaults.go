package capability

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/store"
)

// Rule-based default capability ids.
const (
	RuleMatchID    = "rule.match"
	RuleEvaluateID = "rule.evaluate"
	RuleAllocateID = "rule.allocate"
	RuleVersion    = "v1"
)

// NewWithDefaults returns a registry holding the rule-based match, evaluate
// and allocate capabilities. A nil assigner turns allocation into a dry run.
func NewWithDefaults(assigner store.TaskAssigner) *Registry {
	r := New()
	MustRegister(r, model.CapabilityMeta{
		ID: RuleMatchID, Version: RuleVersion, TenantScope: model.GlobalScope,
		Description: "skill, availability and company filter",
	}, MatchFunc(RuleMatch))
	MustRegister(r, model.CapabilityMeta{
		ID: RuleEvaluateID, Version: RuleVersion, TenantScope: model.GlobalScope,
		Description: "uniform score tagged SKILL_MATCH",
	}, EvaluateFunc(RuleEvaluate))
	MustRegister(r, model.CapabilityMeta{
		ID: RuleAllocateID, Version: RuleVersion, TenantScope: model.GlobalScope,
		Description: "conditional assignment update",
	}, NewRuleAllocate(assigner))
	return r
}

// RuleMatch keeps available workers of the task's company that carry the
// task's skill, in pool order.
func RuleMatch(ctx context.Context, req MatchRequest) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	skill := req.Task.Skill()
	company := req.Task.Context.CompanyID
	var out []Candidate
	for _, w := range req.Workers {
		if company != "" && w.Context.CompanyID != company {
			continue
		}
		if !w.Available() || !w.HasSkill(skill) {
			continue
		}
		out = append(out, Candidate{Worker: w, MatchedSkill: skill})
	}
	return out, nil
}

// RuleEvaluate gives every candidate a score of 1. Confidence is the share of
// the candidate in the total score.
func RuleEvaluate(ctx context.Context, _ model.TaskModel, candidates []Candidate) ([]Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	scores := make([]float64, len(candidates))
	for i := range scores {
		scores[i] = 1
	}
	total := floats.Sum(scores)
	out := make([]Evaluation, len(candidates))
	for i, c := range candidates {
		rec := model.PlatformRecommendation{
			PrimaryReason:   model.ReasonSkillMatch,
			ConfidenceScore: scores[i] / total,
		}
		if c.Worker.Available() {
			rec.SecondaryFactors = []model.ReasonCode{model.ReasonAvailability}
		}
		out[i] = Evaluation{WorkerID: c.Worker.ID, Score: scores[i], Recommendation: rec}
	}
	return out, nil
}

// NewRuleAllocate writes the assignment through the conditional update of
// assigner.
func NewRuleAllocate(assigner store.TaskAssigner) AllocateFunc {
	return func(ctx context.Context, req AllocateRequest) (AllocateResult, error) {
		if assigner == nil {
			return AllocateResult{DryRun: true}, nil
		}
		ok, err := assigner.AssignWorker(ctx, req.Task.Type, req.Task.ID, req.WorkerID)
		if err != nil {
			return AllocateResult{}, fmt.Errorf("assign %s to %s: %w", req.WorkerID, req.Task.ID, err)
		}
		return AllocateResult{Allocated: ok}, nil
	}
}

// RegisterMatch is Register for match handlers.
func (r *Registry) RegisterMatch(meta model.CapabilityMeta, h MatchFunc) error {
	return Register(r, meta, h)
}

// RegisterEvaluate is Register for evaluate handlers.
func (r *Registry) RegisterEvaluate(meta model.CapabilityMeta, h EvaluateFunc) error {
	return Register(r, meta, h)
}

// RegisterAllocate is Register for allocate handlers.
func (r *Registry) RegisterAllocate(meta model.CapabilityMeta, h AllocateFunc) error {
	return Register(r, meta, h)
}
