package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/decision"
	"github.com/kilianp07/fuelops/core/model"
)

// PlatformStrategyName names the registry-backed strategy.
const PlatformStrategyName = "platform.dispatch"

// ErrCapabilityMissing is returned when the registry cannot serve a kind.
var ErrCapabilityMissing = errors.New("gateway: capability not registered")

// PlatformStrategy matches and evaluates through the registry and proposes
// the best scored candidate.
func PlatformStrategy(reg *capability.Registry, match, evaluate capability.ResolveOptions) decision.Strategy {
	return decision.Strategy{
		Name: PlatformStrategyName,
		Run: func(ctx context.Context, dc model.DecisionContext) (model.StrategyResult, error) {
			res := model.StrategyResult{Strategy: PlatformStrategyName, Candidates: []string{}}

			me, ok := capability.Resolve[capability.MatchFunc](reg, withTenant(match, dc.TenantID))
			if !ok {
				return res, fmt.Errorf("%w: %s", ErrCapabilityMissing, capability.KindMatch)
			}
			cands, err := me.Handler(ctx, capability.MatchRequest{Task: dc.Task, Workers: dc.Workers})
			if err != nil {
				return res, fmt.Errorf("%s %s: %w", capability.KindMatch, me.Meta.Key(), err)
			}
			if len(cands) == 0 {
				return res, nil
			}

			ee, ok := capability.Resolve[capability.EvaluateFunc](reg, withTenant(evaluate, dc.TenantID))
			if !ok {
				return res, fmt.Errorf("%w: %s", ErrCapabilityMissing, capability.KindEvaluate)
			}
			evals, err := ee.Handler(ctx, dc.Task, cands)
			if err != nil {
				return res, fmt.Errorf("%s %s: %w", capability.KindEvaluate, ee.Meta.Key(), err)
			}

			ranked := Rank(cands, evals)
			res.Scores = make(map[string]float64, len(ranked))
			for _, r := range ranked {
				res.Candidates = append(res.Candidates, r.WorkerID)
				res.Scores[r.WorkerID] = r.Score
			}
			top := ranked[0]
			res.WorkerID = top.WorkerID
			rec := top.Recommendation
			res.Recommendation = &rec
			return res, nil
		},
	}
}

// Rank orders candidates by descending score. Ties keep match order.
// Candidates without an evaluation score 0.
func Rank(cands []capability.Candidate, evals []capability.Evaluation) []capability.Evaluation {
	byID := make(map[string]capability.Evaluation, len(evals))
	for _, e := range evals {
		if _, dup := byID[e.WorkerID]; !dup {
			byID[e.WorkerID] = e
		}
	}
	ranked := make([]capability.Evaluation, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if seen[c.Worker.ID] {
			continue
		}
		seen[c.Worker.ID] = true
		e, ok := byID[c.Worker.ID]
		if !ok {
			e = capability.Evaluation{WorkerID: c.Worker.ID}
		}
		ranked = append(ranked, e)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func withTenant(opts capability.ResolveOptions, tenant string) capability.ResolveOptions {
	if opts.Tenant == "" {
		opts.Tenant = tenant
	}
	return opts
}
