package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/model"
)

func sample(version string, outcome model.Outcome, confidence float64) model.DecisionSample {
	task := model.TaskModel{ID: "T1", Type: model.TaskDelivery}
	w := &model.WorkerModel{ID: "W1", Skills: []string{"delivery"}}
	return NewSample(task, w, version, model.SampleDecision{WorkerID: "W1"}, outcome,
		map[string]float64{MetricConfidence: confidence})
}

func TestAuditRecorderAndCorpus(t *testing.T) {
	log := audit.NewMemoryLog()
	rec := AuditRecorder{Log: log, Actor: "u-1"}
	s := sample("v1", model.OutcomePlatformAccepted, 1)
	require.NoError(t, rec.Record(context.Background(), s))

	// A foreign entry under the same action must not break decoding.
	_, err := audit.Record(context.Background(), log, "", audit.ActionLearningRecord, audit.TargetTask, "T1", "not a sample")
	require.NoError(t, err)

	entries, err := log.Query(context.Background(), audit.Query{Action: audit.ActionLearningRecord})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "T1", entries[0].TargetID)
	assert.Equal(t, "u-1", entries[0].ActorID)

	got, err := Corpus{Log: log}.Samples(context.Background(), audit.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, s.SampleID, got[0].SampleID)
	require.NotNil(t, got[0].WorkerSnapshot)
	assert.Equal(t, "W1", got[0].WorkerSnapshot.ID)
}

func TestNewSampleCopiesWorker(t *testing.T) {
	w := &model.WorkerModel{ID: "W1", Skills: []string{"delivery"}}
	s := NewSample(model.TaskModel{ID: "T1"}, w, "v1", model.SampleDecision{}, model.OutcomePlatformAccepted, nil)
	w.Skills[0] = "changed"
	assert.Equal(t, []string{"delivery"}, s.WorkerSnapshot.Skills)
	assert.NotEmpty(t, s.SampleID)
	assert.False(t, s.CreatedAt.IsZero())

	none := NewSample(model.TaskModel{ID: "T1"}, nil, "v1", model.SampleDecision{}, model.OutcomePlatformAccepted, nil)
	assert.Nil(t, none.WorkerSnapshot)
}

func TestSummarize(t *testing.T) {
	samples := []model.DecisionSample{
		sample("v2", model.OutcomePlatformEnforced, 0.5),
		sample("v1", model.OutcomePlatformAccepted, 1),
		sample("v1", model.OutcomeBusinessOverride, 0.5),
		sample("v1", model.OutcomeBusinessOverride, 0.25),
		sample("v1", model.OutcomePlatformAccepted, 0.25),
	}
	got := Summarize(samples)
	require.Len(t, got, 2)

	v1 := got[0]
	assert.Equal(t, "v1", v1.StrategyVersion)
	assert.Equal(t, 4, v1.Total)
	assert.Equal(t, 2, v1.Accepted)
	assert.Equal(t, 2, v1.Overrides)
	assert.InDelta(t, 0.5, v1.OverrideRate, 1e-9)
	assert.InDelta(t, 0.5, v1.MeanConfidence, 1e-9)
	assert.Greater(t, v1.StdDevConfidence, 0.0)

	v2 := got[1]
	assert.Equal(t, 1, v2.Enforced)
	assert.InDelta(t, 1.0, v2.EnforcedRate, 1e-9)
	assert.InDelta(t, 0.5, v2.MeanConfidence, 1e-9)
	assert.Zero(t, v2.StdDevConfidence)

	assert.Empty(t, Summarize(nil))
}
