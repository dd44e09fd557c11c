package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/kilianp07/fuelops/core/logger"
	"github.com/kilianp07/fuelops/core/monitoring"
)

var (
	ErrUnknownFlow = errors.New("orchestration: unknown flow")
	ErrStepTimeout = errors.New("orchestration: step timed out")
	ErrInvalidFlow = errors.New("orchestration: flow needs an id and at least one step")
)

// StepFunc advances the state for an event. It must honour ctx.
type StepFunc func(ctx context.Context, ev Event, st State) (State, error)

// Step is one unit of a flow.
type Step struct {
	Name string
	Run  StepFunc
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Engine runs registered flows.
type Engine struct {
	cfg Config
	log logger.Logger
	mon monitoring.Monitor
	now func() time.Time

	mu        sync.RWMutex
	flows     map[string][]Step
	listeners []func(State)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l logger.Logger) Option       { return func(e *Engine) { e.log = logger.OrNop(l) } }
func WithMonitor(m monitoring.Monitor) Option { return func(e *Engine) { e.mon = m } }
func WithClock(now func() time.Time) Option   { return func(e *Engine) { e.now = now } }

// NewEngine returns an engine with cfg completed by SetDefaults.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.SetDefaults()
	e := &Engine{
		cfg:   cfg,
		log:   logger.NopLogger{},
		mon:   monitoring.NopMonitor{},
		now:   time.Now,
		flows: make(map[string][]Step),
	}
	for _, o := range opts {
		o(e)
	}
	if e.mon == nil {
		e.mon = monitoring.NopMonitor{}
	}
	return e
}

// RegisterFlow stores steps under flowID, replacing any previous flow.
func (e *Engine) RegisterFlow(flowID string, steps ...Step) error {
	if flowID == "" || len(steps) == 0 {
		return ErrInvalidFlow
	}
	for i, s := range steps {
		if s.Run == nil {
			return fmt.Errorf("%w: step %d of %s has no run function", ErrInvalidFlow, i, flowID)
		}
	}
	e.mu.Lock()
	e.flows[flowID] = append([]Step(nil), steps...)
	e.mu.Unlock()
	return nil
}

// Flows returns the registered flow ids.
func (e *Engine) Flows() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.flows))
	for id := range e.flows {
		ids = append(ids, id)
	}
	return ids
}

// OnStateChange adds a listener called after every transition.
func (e *Engine) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// OnEvent runs flowID for ev. The returned state is final: "completed" or
// the failed step label. The error is non-nil exactly when the flow failed.
func (e *Engine) OnEvent(ctx context.Context, flowID string, ev Event) (State, error) {
	start := e.now().UTC()
	st := State{FlowID: flowID, EventID: uuid.NewString(), StartedAt: start, UpdatedAt: start}
	if ev.ID == "" {
		ev.ID = st.EventID
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = start
	}

	e.mu.RLock()
	steps, ok := e.flows[flowID]
	e.mu.RUnlock()
	if !ok {
		st.Step = StepUnknownFlow
		st.Error = ErrUnknownFlow.Error()
		flowRuns.WithLabelValues(flowID, "unknown").Inc()
		return st, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	for i, step := range steps {
		next, attempts, err := e.runWithRetry(ctx, flowID, step, ev, st)
		if err != nil {
			st.Step = FailedLabel(i)
			st.StepName = step.Name
			st.Attempts = attempts
			st.Error = err.Error()
			st.UpdatedAt = e.now().UTC()
			e.notify(st)
			flowRuns.WithLabelValues(flowID, "failed").Inc()
			e.log.Warnf("flow %s event %s failed at %s: %v", flowID, st.EventID, step.Name, err)
			e.mon.CaptureException(err, map[string]string{"flow": flowID, "step": step.Name, "event_id": st.EventID})
			return st, fmt.Errorf("flow %s step %s: %w", flowID, step.Name, err)
		}
		next.FlowID, next.EventID, next.StartedAt = flowID, st.EventID, st.StartedAt
		next.Step = StepLabel(i)
		next.StepName = step.Name
		next.Attempts = attempts
		next.Error = ""
		next.UpdatedAt = e.now().UTC()
		st = next
		e.notify(st)
	}

	st.Step = StepCompleted
	st.UpdatedAt = e.now().UTC()
	e.notify(st)
	flowRuns.WithLabelValues(flowID, "completed").Inc()
	e.log.Debugw("flow completed", map[string]any{"flow": flowID, "event_id": st.EventID})
	return st, nil
}

func (e *Engine) runWithRetry(ctx context.Context, flowID string, step Step, ev Event, st State) (State, int, error) {
	var (
		out      State
		attempts int
	)
	began := time.Now()
	op := func() error {
		attempts++
		if attempts > 1 {
			stepRetries.WithLabelValues(flowID, step.Name).Inc()
		}
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		next, err := e.attempt(ctx, step, ev, st.Clone())
		if err != nil {
			return err
		}
		out = next
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.retryBackoff()
	bo.MaxElapsedTime = 0
	var policy backoff.BackOff = backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.maxRetries())), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		e.log.Debugf("flow %s step %s attempt %d failed, retrying in %s: %v", flowID, step.Name, attempts, wait, err)
	})
	result := "ok"
	if err != nil {
		result = "failed"
	}
	stepDuration.WithLabelValues(flowID, step.Name, result).Observe(time.Since(began).Seconds())
	return out, attempts, err
}

type stepResult struct {
	st  State
	err error
}

// attempt runs one try of step under the configured timeout. A step that
// outlives the timeout has its context cancelled and its result dropped.
func (e *Engine) attempt(ctx context.Context, step Step, ev Event, st State) (State, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.timeout())
	defer cancel()

	done := make(chan stepResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepResult{err: fmt.Errorf("step %s panicked: %v", step.Name, r)}
			}
		}()
		next, err := step.Run(stepCtx, ev, st)
		done <- stepResult{st: next, err: err}
	}()

	select {
	case r := <-done:
		return r.st, r.err
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return State{}, fmt.Errorf("%w after %s", ErrStepTimeout, e.cfg.timeout())
		}
		return State{}, backoff.Permanent(stepCtx.Err())
	}
}

func (e *Engine) notify(st State) {
	e.mu.RLock()
	ls := append([]func(State){}, e.listeners...)
	e.mu.RUnlock()
	for _, fn := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Errorf("state listener panicked: %v", r)
				}
			}()
			fn(st.Clone())
		}()
	}
}
