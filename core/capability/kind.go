package capability

import (
	"context"

	"github.com/kilianp07/fuelops/core/model"
)

// Kind names a capability type.
type Kind string

const (
	KindMatch    Kind = "dispatch.match"
	KindEvaluate Kind = "strategy.evaluate"
	KindAllocate Kind = "dispatch.allocate"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{KindMatch, KindEvaluate, KindAllocate}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Candidate is a worker that passed matching.
type Candidate struct {
	Worker       model.WorkerModel `json:"worker"`
	MatchedSkill string            `json:"matched_skill"`
}

// MatchRequest is the input of a match capability: the task and the worker
// pool it may draw from.
type MatchRequest struct {
	Task    model.TaskModel
	Workers []model.WorkerModel
}

// MatchFunc returns candidates in ranked match order.
type MatchFunc func(ctx context.Context, req MatchRequest) ([]Candidate, error)

// Evaluation is the score of one candidate.
type Evaluation struct {
	WorkerID       string                       `json:"worker_id"`
	Score          float64                      `json:"score"`
	Recommendation model.PlatformRecommendation `json:"recommendation"`
}

// EvaluateFunc scores candidates. The result may be in any order.
type EvaluateFunc func(ctx context.Context, task model.TaskModel, candidates []Candidate) ([]Evaluation, error)

// AllocateRequest asks for a worker to be written onto a task.
type AllocateRequest struct {
	Task       model.TaskModel
	WorkerID   string
	ActorID    string
	DecisionID string
}

// AllocateResult reports what the allocate capability did.
type AllocateResult struct {
	Allocated bool `json:"allocated"`
	DryRun    bool `json:"dry_run,omitempty"`
}

// AllocateFunc performs the allocation write.
type AllocateFunc func(ctx context.Context, req AllocateRequest) (AllocateResult, error)

// Handler is the set of handler types the registry accepts.
type Handler interface {
	MatchFunc | EvaluateFunc | AllocateFunc
}

// KindOf returns the kind served by handler type H.
func KindOf[H Handler]() Kind {
	var h H
	switch any(h).(type) {
	case MatchFunc:
		return KindMatch
	case EvaluateFunc:
		return KindEvaluate
	default:
		return KindAllocate
	}
}

func isNilHandler(h any) bool {
	switch f := h.(type) {
	case MatchFunc:
		return f == nil
	case EvaluateFunc:
		return f == nil
	case AllocateFunc:
		return f == nil
	}
	return true
}
