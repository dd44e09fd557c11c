package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{TimeoutMS: 200, MaxRetries: Retries(retries), RetryBackoffMS: 1}
}

func setStep(key string, v any) Step {
	return Step{Name: key, Run: func(_ context.Context, _ Event, st State) (State, error) {
		st.Set(key, v)
		return st, nil
	}}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, DefaultTimeoutMS, c.TimeoutMS)
	assert.Equal(t, DefaultMaxRetries, *c.MaxRetries)
	assert.Equal(t, DefaultRetryBackoffMS, c.RetryBackoffMS)
	assert.NoError(t, c.Validate())

	zero := Config{MaxRetries: Retries(0)}
	zero.SetDefaults()
	assert.Equal(t, 0, *zero.MaxRetries)
	assert.Error(t, Config{MaxRetries: Retries(-1)}.Validate())
}

func TestNegativeRetriesRunOnce(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	var calls atomic.Int32
	failing := Step{Name: "failing", Run: func(_ context.Context, _ Event, st State) (State, error) {
		calls.Add(1)
		return st, errors.New("boom")
	}}
	e := NewEngine(Config{MaxRetries: Retries(-1), RetryBackoffMS: 1})
	require.NoError(t, e.RegisterFlow("f", failing))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := e.OnEvent(ctx, "f", Event{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "step_0_failed", st.Step)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRegisterFlowValidation(t *testing.T) {
	e := NewEngine(fastConfig(0))
	assert.ErrorIs(t, e.RegisterFlow("", setStep("a", 1)), ErrInvalidFlow)
	assert.ErrorIs(t, e.RegisterFlow("f"), ErrInvalidFlow)
	assert.ErrorIs(t, e.RegisterFlow("f", Step{Name: "nil"}), ErrInvalidFlow)
	assert.NoError(t, e.RegisterFlow("f", setStep("a", 1)))
	assert.Equal(t, []string{"f"}, e.Flows())
}

func TestOnEventCompletes(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	e := NewEngine(fastConfig(1))
	require.NoError(t, e.RegisterFlow("f", setStep("a", 1), setStep("b", 2)))

	var mu sync.Mutex
	var labels []string
	e.OnStateChange(func(st State) {
		mu.Lock()
		labels = append(labels, st.Step)
		mu.Unlock()
	})

	st, err := e.OnEvent(context.Background(), "f", Event{Type: "test"})
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, st.Step)
	assert.NotEmpty(t, st.EventID)
	assert.Equal(t, "f", st.FlowID)
	assert.Equal(t, 1, st.Data["a"])
	assert.Equal(t, 2, st.Data["b"])
	assert.Equal(t, []string{"step_0", "step_1", "completed"}, labels)
	assert.Equal(t, 1.0, testutil.ToFloat64(flowRuns.WithLabelValues("f", "completed")))
}

func TestOnEventUnknownFlow(t *testing.T) {
	st, err := NewEngine(fastConfig(0)).OnEvent(context.Background(), "missing", Event{})
	assert.ErrorIs(t, err, ErrUnknownFlow)
	assert.Equal(t, StepUnknownFlow, st.Step)
}

func TestOnEventRetriesThenSucceeds(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	var calls atomic.Int32
	flaky := Step{Name: "flaky", Run: func(_ context.Context, _ Event, st State) (State, error) {
		if calls.Add(1) == 1 {
			return st, errors.New("transient")
		}
		return st, nil
	}}
	e := NewEngine(fastConfig(1))
	require.NoError(t, e.RegisterFlow("f", flaky))

	st, err := e.OnEvent(context.Background(), "f", Event{})
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, st.Step)
	assert.Equal(t, 2, st.Attempts)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(stepRetries.WithLabelValues("f", "flaky")))
}

func TestOnEventStopsOnFinalFailure(t *testing.T) {
	var calls, after atomic.Int32
	failing := Step{Name: "failing", Run: func(_ context.Context, _ Event, st State) (State, error) {
		calls.Add(1)
		return st, errors.New("still broken")
	}}
	never := Step{Name: "never", Run: func(_ context.Context, _ Event, st State) (State, error) {
		after.Add(1)
		return st, nil
	}}
	e := NewEngine(fastConfig(2))
	require.NoError(t, e.RegisterFlow("f", setStep("a", 1), failing, never))

	st, err := e.OnEvent(context.Background(), "f", Event{})
	require.Error(t, err)
	assert.Equal(t, "step_1_failed", st.Step)
	assert.Equal(t, "still broken", st.Error)
	assert.Equal(t, 1, st.Data["a"], "state of completed steps is kept")
	assert.EqualValues(t, 3, calls.Load())
	assert.Zero(t, after.Load())
}

func TestOnEventPermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	step := Step{Name: "reject", Run: func(_ context.Context, _ Event, st State) (State, error) {
		calls.Add(1)
		return st, Permanent(errors.New("rejected"))
	}}
	e := NewEngine(fastConfig(3))
	require.NoError(t, e.RegisterFlow("f", step))

	st, err := e.OnEvent(context.Background(), "f", Event{})
	require.Error(t, err)
	assert.Equal(t, "step_0_failed", st.Step)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOnEventTimeoutCancelsStep(t *testing.T) {
	cancelled := make(chan struct{}, 4)
	slow := Step{Name: "slow", Run: func(ctx context.Context, _ Event, st State) (State, error) {
		<-ctx.Done()
		cancelled <- struct{}{}
		st.Set("late", true)
		return st, nil
	}}
	e := NewEngine(Config{TimeoutMS: 20, MaxRetries: Retries(0), RetryBackoffMS: 1})
	require.NoError(t, e.RegisterFlow("f", slow))

	st, err := e.OnEvent(context.Background(), "f", Event{})
	require.ErrorIs(t, err, ErrStepTimeout)
	assert.Equal(t, "step_0_failed", st.Step)
	assert.NotContains(t, st.Data, "late")
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("step context was not cancelled")
	}
}

func TestOnEventPanicIsFailure(t *testing.T) {
	boom := Step{Name: "boom", Run: func(context.Context, Event, State) (State, error) {
		panic("kaboom")
	}}
	e := NewEngine(fastConfig(0))
	require.NoError(t, e.RegisterFlow("f", boom))

	var st State
	var err error
	require.NotPanics(t, func() { st, err = e.OnEvent(context.Background(), "f", Event{}) })
	require.Error(t, err)
	assert.Contains(t, st.Error, "kaboom")
}

func TestStepsSeeEventAndPreviousState(t *testing.T) {
	e := NewEngine(fastConfig(0))
	read := Step{Name: "read", Run: func(_ context.Context, ev Event, st State) (State, error) {
		st.Set("seen", ev.Payload["task_id"].(string)+":"+st.Data["a"].(string))
		return st, nil
	}}
	require.NoError(t, e.RegisterFlow("f", setStep("a", "x"), read))
	st, err := e.OnEvent(context.Background(), "f", Event{Payload: map[string]any{"task_id": "T1"}})
	require.NoError(t, err)
	assert.Equal(t, "T1:x", st.Data["seen"])
}
