package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/learning"
	"github.com/kilianp07/fuelops/core/model"
)

type fakeInserter struct {
	args []river.JobArgs
	opts []*river.InsertOpts
	err  error
}

func (f *fakeInserter) Insert(_ context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.args = append(f.args, args)
	f.opts = append(f.opts, opts)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{Kind: args.Kind()}}, nil
}

func sample() model.DecisionSample {
	return learning.NewSample(model.TaskModel{ID: "T1", Type: model.TaskDelivery}, nil, "rule-v1",
		model.SampleDecision{PlatformWorkerID: "W1"}, model.OutcomePlatformAccepted, nil)
}

func TestRecorderEnqueues(t *testing.T) {
	ins := &fakeInserter{}
	rec := &Recorder{client: ins, maxAttempts: 3}
	s := sample()
	require.NoError(t, rec.Record(context.Background(), s))

	require.Len(t, ins.args, 1)
	args, ok := ins.args[0].(LearningRecordArgs)
	require.True(t, ok)
	assert.Equal(t, s.SampleID, args.Sample.SampleID)
	assert.Equal(t, LearningQueue, ins.opts[0].Queue)
	assert.Equal(t, 3, ins.opts[0].MaxAttempts)
}

func TestRecorderWrapsInsertError(t *testing.T) {
	rec := &Recorder{client: &fakeInserter{err: errors.New("db down")}}
	err := rec.Record(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestWorkerWritesToTarget(t *testing.T) {
	var got []model.DecisionSample
	target := learning.RecorderFunc(func(_ context.Context, s model.DecisionSample) error {
		got = append(got, s)
		return nil
	})
	w := NewLearningRecordWorker(target, nil)
	s := sample()
	job := &river.Job[LearningRecordArgs]{JobRow: &rivertype.JobRow{Attempt: 1}, Args: LearningRecordArgs{Sample: s}}
	require.NoError(t, w.Work(context.Background(), job))
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].TaskSnapshot.ID)
}

func TestWorkerReturnsErrorForRetry(t *testing.T) {
	target := learning.RecorderFunc(func(context.Context, model.DecisionSample) error { return errors.New("audit down") })
	w := NewLearningRecordWorker(target, nil)
	job := &river.Job[LearningRecordArgs]{JobRow: &rivertype.JobRow{Attempt: 2}, Args: LearningRecordArgs{Sample: sample()}}
	assert.Error(t, w.Work(context.Background(), job))
}

func TestArgsKindAndQueue(t *testing.T) {
	a := LearningRecordArgs{}
	assert.Equal(t, "platform_learning_record", a.Kind())
	assert.Equal(t, LearningQueue, a.InsertOpts().Queue)

	var c Config
	c.SetDefaults()
	assert.Equal(t, 4, c.MaxWorkers)
	assert.Equal(t, 5, c.MaxAttempts)
	assert.NoError(t, c.Validate())
}
