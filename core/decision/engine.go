package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fuelops/core/logger"
	"github.com/kilianp07/fuelops/core/model"
)

// DefaultDecisionType labels traces of engines built without WithDecisionType.
const DefaultDecisionType = "dispatch"

// ErrNoCandidates is reported when no strategy produced a worker.
var ErrNoCandidates = errors.New("no_candidates")

// StrategyFunc proposes a worker for a decision context. Returning a result
// with an empty WorkerID hands over to the next strategy.
type StrategyFunc func(ctx context.Context, dc model.DecisionContext) (model.StrategyResult, error)

// Strategy is a named step of the strategy chain.
type Strategy struct {
	Name string
	Run  StrategyFunc
}

// ConflictResolver adjudicates between the proposals collected while the
// chain ran. proposals holds every result in chain order, the winner last.
type ConflictResolver interface {
	Resolve(ctx context.Context, dc model.DecisionContext, winner model.StrategyResult, proposals []model.StrategyResult) (model.StrategyResult, []model.Conflict)
}

// IdentityResolver keeps the winning proposal and reports no conflicts.
type IdentityResolver struct{}

func (IdentityResolver) Resolve(_ context.Context, _ model.DecisionContext, winner model.StrategyResult, _ []model.StrategyResult) (model.StrategyResult, []model.Conflict) {
	return winner, nil
}

// TraceSink persists decision traces.
type TraceSink interface {
	WriteTrace(ctx context.Context, trace model.DecisionTrace) error
}

// TraceSinkFunc adapts a function to TraceSink.
type TraceSinkFunc func(ctx context.Context, trace model.DecisionTrace) error

func (f TraceSinkFunc) WriteTrace(ctx context.Context, trace model.DecisionTrace) error {
	return f(ctx, trace)
}

type nopSink struct{}

func (nopSink) WriteTrace(context.Context, model.DecisionTrace) error { return nil }

// Outcome is the result of one decision.
type Outcome struct {
	Success    bool
	DecisionID string
	WorkerID   string
	// Result is the resolved proposal, or the last proposal seen when no
	// strategy picked a worker.
	Result *model.StrategyResult
	Trace  model.DecisionTrace
	// Error is the short failure text stored in the trace.
	Error string
	Err   error
}

// Engine runs the strategy chain.
type Engine struct {
	strategies   []Strategy
	resolver     ConflictResolver
	sink         TraceSink
	log          logger.Logger
	decisionType string
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

func WithResolver(r ConflictResolver) Option { return func(e *Engine) { e.resolver = r } }
func WithSink(s TraceSink) Option            { return func(e *Engine) { e.sink = s } }
func WithLogger(l logger.Logger) Option      { return func(e *Engine) { e.log = logger.OrNop(l) } }
func WithDecisionType(t string) Option       { return func(e *Engine) { e.decisionType = t } }
func WithClock(now func() time.Time) Option  { return func(e *Engine) { e.now = now } }

// NewEngine builds an engine running strategies in order.
func NewEngine(strategies []Strategy, opts ...Option) *Engine {
	e := &Engine{
		strategies:   append([]Strategy(nil), strategies...),
		resolver:     IdentityResolver{},
		sink:         nopSink{},
		log:          logger.NopLogger{},
		decisionType: DefaultDecisionType,
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.resolver == nil {
		e.resolver = IdentityResolver{}
	}
	if e.sink == nil {
		e.sink = nopSink{}
	}
	return e
}

// Decide runs the chain on a snapshot of dc. It never panics.
func (e *Engine) Decide(ctx context.Context, dc model.DecisionContext) Outcome {
	winner, proposals, err := e.applyStrategies(ctx, dc)
	if err != nil {
		return e.produce(ctx, dc, lastOf(proposals), nil, err)
	}
	if winner == nil {
		return e.produce(ctx, dc, lastOf(proposals), nil, ErrNoCandidates)
	}
	resolved, conflicts := e.resolveConflicts(ctx, dc, *winner, proposals)
	if resolved.WorkerID == "" {
		return e.produce(ctx, dc, &resolved, conflicts, ErrNoCandidates)
	}
	return e.produce(ctx, dc, &resolved, conflicts, nil)
}

// Fail records a failure trace for an error raised outside the strategy
// chain, such as a failed task lookup.
func (e *Engine) Fail(ctx context.Context, dc model.DecisionContext, err error) Outcome {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return e.produce(ctx, dc, nil, nil, err)
}

func (e *Engine) applyStrategies(ctx context.Context, dc model.DecisionContext) (*model.StrategyResult, []model.StrategyResult, error) {
	var proposals []model.StrategyResult
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, proposals, err
		}
		res, err := runStrategy(ctx, s, dc.Snapshot())
		if err != nil {
			return nil, proposals, err
		}
		if res.Strategy == "" {
			res.Strategy = s.Name
		}
		proposals = append(proposals, res)
		if res.WorkerID != "" {
			return &proposals[len(proposals)-1], proposals, nil
		}
	}
	return nil, proposals, nil
}

func runStrategy(ctx context.Context, s Strategy, dc model.DecisionContext) (res model.StrategyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	if s.Run == nil {
		return res, fmt.Errorf("strategy %s has no run function", s.Name)
	}
	return s.Run(ctx, dc)
}

func (e *Engine) resolveConflicts(ctx context.Context, dc model.DecisionContext, winner model.StrategyResult, proposals []model.StrategyResult) (res model.StrategyResult, conflicts []model.Conflict) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("conflict resolver panicked: %v", r)
			res, conflicts = winner, nil
		}
	}()
	return e.resolver.Resolve(ctx, dc, winner, proposals)
}

func (e *Engine) produce(ctx context.Context, dc model.DecisionContext, result *model.StrategyResult, conflicts []model.Conflict, err error) Outcome {
	trace := model.DecisionTrace{
		DecisionID:      uuid.NewString(),
		RequestID:       dc.RequestID,
		DecisionType:    e.decisionType,
		StrategyVersion: dc.StrategyVersion,
		InputSummary:    dc.Summarize(),
		StrategyOutput:  result,
		Conflicts:       conflicts,
		Timestamp:       e.now().UTC(),
	}
	if trace.Conflicts == nil {
		trace.Conflicts = []model.Conflict{}
	}
	out := Outcome{DecisionID: trace.DecisionID, Result: result, Err: err}
	if err != nil {
		out.Error = err.Error()
		trace.DecisionOutput = model.DecisionOutput{Error: out.Error}
	} else {
		out.Success = true
		out.WorkerID = result.WorkerID
		trace.DecisionOutput = model.DecisionOutput{WorkerID: result.WorkerID}
	}
	out.Trace = trace
	e.emit(ctx, trace)
	return out
}

func (e *Engine) emit(ctx context.Context, trace model.DecisionTrace) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("trace sink panicked for decision %s: %v", trace.DecisionID, r)
		}
	}()
	// A cancelled caller still gets its trace written.
	if err := e.sink.WriteTrace(context.WithoutCancel(ctx), trace); err != nil {
		e.log.Errorf("write trace %s: %v", trace.DecisionID, err)
		return
	}
	e.log.Debugw("decision traced", map[string]any{
		"decision_id": trace.DecisionID,
		"task_id":     trace.InputSummary.TaskID,
		"worker_id":   trace.DecisionOutput.WorkerID,
		"error":       trace.DecisionOutput.Error,
	})
}

func lastOf(rs []model.StrategyResult) *model.StrategyResult {
	if len(rs) == 0 {
		return nil
	}
	r := rs[len(rs)-1]
	return &r
}
