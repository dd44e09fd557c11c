// Package learning records decision samples for later training and reads
// them back as a corpus.
package learning

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/model"
)

// Metric keys stored in DecisionSample.Metrics.
const (
	MetricConfidence = "confidence"
	MetricScore      = "score"
	MetricCandidates = "candidates"
)

// Recorder persists decision samples.
type Recorder interface {
	Record(ctx context.Context, s model.DecisionSample) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, s model.DecisionSample) error

func (f RecorderFunc) Record(ctx context.Context, s model.DecisionSample) error { return f(ctx, s) }

// NewSample stamps a sample with a fresh id and creation time.
func NewSample(task model.TaskModel, worker *model.WorkerModel, strategyVersion string, d model.SampleDecision, outcome model.Outcome, metrics map[string]float64) model.DecisionSample {
	var ws *model.WorkerModel
	if worker != nil {
		w := worker.Clone()
		ws = &w
	}
	return model.DecisionSample{
		SampleID:        uuid.NewString(),
		TaskSnapshot:    task.Clone(),
		WorkerSnapshot:  ws,
		StrategyVersion: strategyVersion,
		Decision:        d,
		Outcome:         outcome,
		Metrics:         metrics,
		CreatedAt:       time.Now().UTC(),
	}
}

// AuditRecorder writes samples as PLATFORM_LEARNING_RECORD audit entries
// targeting the task.
type AuditRecorder struct {
	Log   audit.Log
	Actor string
}

func (r AuditRecorder) Record(ctx context.Context, s model.DecisionSample) error {
	e, err := audit.NewEntry(r.Actor, audit.ActionLearningRecord, audit.TargetTask, s.TaskSnapshot.ID, s)
	if err != nil {
		return err
	}
	if !s.CreatedAt.IsZero() {
		e.CreatedAt = s.CreatedAt
	}
	return r.Log.Append(ctx, e)
}

// Corpus reads recorded samples back from the audit log.
type Corpus struct {
	Log audit.Log
}

// Samples decodes the learning records matching q. Entries that do not
// decode are skipped.
func (c Corpus) Samples(ctx context.Context, q audit.Query) ([]model.DecisionSample, error) {
	q.Action = audit.ActionLearningRecord
	entries, err := c.Log.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.DecisionSample, 0, len(entries))
	for _, e := range entries {
		var s model.DecisionSample
		if err := e.Decode(&s); err != nil || s.SampleID == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Summary aggregates the samples of one strategy version.
type Summary struct {
	StrategyVersion  string  `json:"strategy_version"`
	Total            int     `json:"total"`
	Accepted         int     `json:"accepted"`
	Overrides        int     `json:"overrides"`
	Enforced         int     `json:"enforced"`
	OverrideRate     float64 `json:"override_rate"`
	EnforcedRate     float64 `json:"enforced_rate"`
	MeanConfidence   float64 `json:"mean_confidence"`
	StdDevConfidence float64 `json:"stddev_confidence"`
}

// Summarize groups samples by strategy version, sorted by version.
func Summarize(samples []model.DecisionSample) []Summary {
	type acc struct {
		sum  Summary
		conf []float64
	}
	groups := make(map[string]*acc)
	for _, s := range samples {
		g, ok := groups[s.StrategyVersion]
		if !ok {
			g = &acc{sum: Summary{StrategyVersion: s.StrategyVersion}}
			groups[s.StrategyVersion] = g
		}
		g.sum.Total++
		switch s.Outcome {
		case model.OutcomeBusinessOverride:
			g.sum.Overrides++
		case model.OutcomePlatformEnforced:
			g.sum.Enforced++
		case model.OutcomePlatformAccepted:
			g.sum.Accepted++
		}
		if c, ok := s.Metrics[MetricConfidence]; ok {
			g.conf = append(g.conf, c)
		}
	}
	out := make([]Summary, 0, len(groups))
	for _, g := range groups {
		s := g.sum
		s.OverrideRate = float64(s.Overrides) / float64(s.Total)
		s.EnforcedRate = float64(s.Enforced) / float64(s.Total)
		switch len(g.conf) {
		case 0:
		case 1:
			s.MeanConfidence = g.conf[0]
		default:
			s.MeanConfidence, s.StdDevConfidence = stat.MeanStdDev(g.conf, nil)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyVersion < out[j].StrategyVersion })
	return out
}
