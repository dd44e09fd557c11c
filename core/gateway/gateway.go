package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fuelops/core/adapter"
	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/decision"
	"github.com/kilianp07/fuelops/core/events"
	"github.com/kilianp07/fuelops/core/learning"
	"github.com/kilianp07/fuelops/core/logger"
	coremetrics "github.com/kilianp07/fuelops/core/metrics"
	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/monitoring"
	"github.com/kilianp07/fuelops/core/store"
	"github.com/kilianp07/fuelops/internal/eventbus"
)

// Deps are the collaborators of a Gateway. Registry, Tasks, Workers and
// Audit are required; the rest default to no-ops.
type Deps struct {
	Registry *capability.Registry
	Tasks    store.TaskRepository
	Workers  store.WorkerRepository
	Audit    audit.Log
	Learning learning.Recorder
	Sink     coremetrics.MetricsSink
	Bus      eventbus.EventBus
	Monitor  monitoring.Monitor
	Logger   logger.Logger
}

// Gateway dispatches tasks to workers.
type Gateway struct {
	cfg      Config
	reg      *capability.Registry
	tasks    store.TaskRepository
	workers  store.WorkerRepository
	audit    audit.Log
	learning learning.Recorder
	sink     coremetrics.MetricsSink
	bus      eventbus.EventBus
	mon      monitoring.Monitor
	log      logger.Logger
	engine   *decision.Engine
}

// New validates deps and builds a Gateway.
func New(cfg Config, deps Deps) (*Gateway, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("gateway: registry is required")
	case deps.Tasks == nil || deps.Workers == nil:
		return nil, errors.New("gateway: task and worker repositories are required")
	case deps.Audit == nil:
		return nil, errors.New("gateway: audit log is required")
	}
	cfg.setDefaults()
	g := &Gateway{
		cfg:      cfg,
		reg:      deps.Registry,
		tasks:    deps.Tasks,
		workers:  deps.Workers,
		audit:    deps.Audit,
		learning: deps.Learning,
		sink:     deps.Sink,
		bus:      deps.Bus,
		mon:      deps.Monitor,
		log:      logger.OrNop(deps.Logger),
	}
	if g.learning == nil {
		g.learning = learning.AuditRecorder{Log: deps.Audit}
	}
	if g.sink == nil {
		g.sink = coremetrics.NopSink{}
	}
	if g.mon == nil {
		g.mon = monitoring.NopMonitor{}
	}
	g.engine = decision.NewEngine(
		[]decision.Strategy{PlatformStrategy(g.reg, cfg.Match, cfg.Evaluate)},
		decision.WithSink(audit.TraceWriter{Log: deps.Audit}),
		decision.WithLogger(g.log),
		decision.WithDecisionType(decision.DefaultDecisionType),
	)
	return g, nil
}

// Mode returns the active takeover mode.
func (g *Gateway) Mode() TakeoverMode { return g.cfg.Mode }

// Registry returns the capability registry used by the gateway.
func (g *Gateway) Registry() *capability.Registry { return g.reg }

// call carries the progress of one Dispatch call.
type call struct {
	in    Input
	dc    model.DecisionContext
	task  *model.TaskModel
	start time.Time
}

// Dispatch runs one dispatch. It never panics and always returns an Output
// backed by at least one decision trace.
func (g *Gateway) Dispatch(ctx context.Context, in Input) (out Output) {
	c := &call{in: normalizeInput(in), start: time.Now()}
	c.dc = placeholderContext(c.in, g.cfg.StrategyVersion)
	defer func() {
		if r := recover(); r != nil {
			out = g.internalFailure(ctx, c, fmt.Errorf("panic: %v", r), false, out)
		}
		g.observe(c, out)
	}()
	return g.dispatch(ctx, c)
}

func (g *Gateway) dispatch(ctx context.Context, c *call) Output {
	in := c.in
	if in.TaskID == "" {
		return g.reject(ctx, c, CodeInvalidTaskID, "task id is required")
	}
	taskType := model.ParseTaskType(in.TaskType)
	task, err := adapter.LoadTask(ctx, g.tasks, taskType, in.TaskID)
	switch {
	case errors.Is(err, store.ErrUnsupportedTaskType):
		return g.reject(ctx, c, CodeTaskNotFound, err.Error())
	case err != nil:
		return g.internalFailure(ctx, c, err, false, Output{})
	case task == nil:
		return g.reject(ctx, c, CodeTaskNotFound, fmt.Sprintf("%s %s not found", taskType, in.TaskID))
	case in.CompanyID != "" && task.Context.CompanyID != in.CompanyID:
		return g.reject(ctx, c, CodeTaskNotFound, fmt.Sprintf("%s %s not found in company %s", taskType, in.TaskID, in.CompanyID))
	}
	c.task = task
	g.snapshot(c, nil)

	workers, err := adapter.LoadWorkers(ctx, g.workers, task.Context.CompanyID)
	if err != nil {
		return g.internalFailure(ctx, c, err, false, Output{})
	}
	g.snapshot(c, workers)

	res := g.engine.Decide(ctx, c.dc)
	out := Output{
		DecisionID: res.DecisionID,
		Trace:      &res.Trace,
		Candidates: g.candidateViews(c.dc, res.Result),
		Mode:       g.cfg.Mode,
	}
	if !res.Success {
		if errors.Is(res.Err, decision.ErrNoCandidates) {
			rec := model.PlatformRecommendation{PrimaryReason: model.ReasonNoCandidates}
			out.PlatformRecommendation = &rec
			out.PlatformRecommendationReason = rec.Reason("")
			out.ErrorCode = CodeNoCandidates
			out.Error = MsgNoCandidates
			return out
		}
		return g.internalFailure(ctx, c, res.Err, true, out)
	}

	pick := res.WorkerID
	out.PlatformSelectedWorker = pick
	if res.Result != nil && res.Result.Recommendation != nil {
		rec := *res.Result.Recommendation
		out.PlatformRecommendation = &rec
		out.PlatformRecommendationReason = rec.Reason(workerName(c.dc, pick))
	}
	out.BusinessOverride = in.BusinessProvidedWorkerID != "" && in.BusinessProvidedWorkerID != pick

	if g.cfg.Mode == ModeSuggest && out.BusinessOverride && in.RejectedCategory == "" {
		out.ErrorCode = CodeRejectedReasonRequired
		out.Error = CodeRejectedReasonRequired
		return out
	}

	out.EffectiveWorker = effectiveWorker(g.cfg.Mode, pick, in.BusinessProvidedWorkerID)
	out.Outcome = outcomeOf(g.cfg.Mode, out.BusinessOverride)

	alloc, err := g.allocate(ctx, c, out)
	if err != nil {
		return g.internalFailure(ctx, c, err, false, out)
	}
	out.Allocated = alloc.Allocated
	if !alloc.Allocated && !alloc.DryRun {
		out.ErrorCode = CodeAllocationConflict
		out.Error = fmt.Sprintf("task %s is no longer assignable", in.TaskID)
		return out
	}

	g.recordSample(ctx, c, res, out)
	out.Success = true
	return out
}

// snapshot rebuilds the decision context of c from its task and workers.
func (g *Gateway) snapshot(c *call, workers []model.WorkerModel) {
	c.dc = model.NewDecisionContext(c.dc.RequestID, *c.task, workers, g.cfg.StrategyVersion)
	c.dc.Meta = map[string]any{"actor_id": c.in.ActorID, "mode": string(g.cfg.Mode)}
}

func (g *Gateway) allocate(ctx context.Context, c *call, out Output) (capability.AllocateResult, error) {
	ae, ok := capability.Resolve[capability.AllocateFunc](g.reg, withTenant(g.cfg.Allocate, c.dc.TenantID))
	if !ok {
		return capability.AllocateResult{}, fmt.Errorf("%w: %s", ErrCapabilityMissing, capability.KindAllocate)
	}
	res, err := ae.Handler(ctx, capability.AllocateRequest{
		Task:       *c.task,
		WorkerID:   out.EffectiveWorker,
		ActorID:    c.in.ActorID,
		DecisionID: out.DecisionID,
	})
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", capability.KindAllocate, ae.Meta.Key(), err)
	}
	meta := allocationRecord{
		DecisionID:       out.DecisionID,
		TaskType:         string(c.task.Type),
		CompanyID:        c.task.Context.CompanyID,
		WorkerID:         out.EffectiveWorker,
		PlatformWorkerID: out.PlatformSelectedWorker,
		BusinessWorkerID: c.in.BusinessProvidedWorkerID,
		Mode:             string(g.cfg.Mode),
		BusinessOverride: out.BusinessOverride,
		Allocated:        res.Allocated,
		DryRun:           res.DryRun,
		Capability:       ae.Meta.Key(),
		RejectedReason:   c.in.RejectedReason,
		RejectedCategory: c.in.RejectedCategory,
	}
	if _, err := audit.Record(ctx, g.audit, c.in.ActorID, audit.ActionDispatchAllocate, audit.TargetTask, c.task.ID, meta); err != nil {
		g.log.Errorf("record allocation of %s: %v", c.task.ID, err)
		g.mon.CaptureException(err, map[string]string{"task_id": c.task.ID, "stage": "allocate_audit"})
	}
	return res, nil
}

func (g *Gateway) recordSample(ctx context.Context, c *call, res decision.Outcome, out Output) {
	var snapshot *model.WorkerModel
	if w, ok := c.dc.Worker(out.EffectiveWorker); ok {
		snapshot = &w
	}
	metrics := map[string]float64{learning.MetricCandidates: float64(len(out.Candidates))}
	if out.PlatformRecommendation != nil {
		metrics[learning.MetricConfidence] = out.PlatformRecommendation.ConfidenceScore
	}
	if res.Result != nil {
		if s, ok := res.Result.Scores[out.EffectiveWorker]; ok {
			metrics[learning.MetricScore] = s
		}
	}
	sample := learning.NewSample(*c.task, snapshot, g.cfg.StrategyVersion, model.SampleDecision{
		DecisionID:       out.DecisionID,
		WorkerID:         out.EffectiveWorker,
		PlatformWorkerID: out.PlatformSelectedWorker,
		BusinessWorkerID: c.in.BusinessProvidedWorkerID,
		TakeoverMode:     string(g.cfg.Mode),
		BusinessOverride: out.BusinessOverride,
		RejectedReason:   c.in.RejectedReason,
		RejectedCategory: c.in.RejectedCategory,
	}, out.Outcome, metrics)
	if err := g.learning.Record(ctx, sample); err != nil {
		g.log.Errorf("record learning sample for %s: %v", c.task.ID, err)
		g.mon.CaptureException(err, map[string]string{"task_id": c.task.ID, "stage": "learning"})
	}
}

// reject ends a call on a caller error with a failure trace.
func (g *Gateway) reject(ctx context.Context, c *call, code, msg string) Output {
	res := g.engine.Fail(ctx, c.dc, errors.New(code))
	g.log.Debugf("dispatch %s rejected: %s (%s)", c.in.TaskID, code, msg)
	return Output{
		DecisionID: res.DecisionID,
		Trace:      &res.Trace,
		Candidates: []CandidateView{},
		Mode:       g.cfg.Mode,
		ErrorCode:  code,
		Error:      code,
	}
}

// internalFailure records a failure trace unless one was already written,
// a bypass attempt and a monitor capture.
func (g *Gateway) internalFailure(ctx context.Context, c *call, err error, traced bool, out Output) Output {
	if !traced || out.Trace == nil {
		res := g.engine.Fail(ctx, c.dc, err)
		out.DecisionID = res.DecisionID
		out.Trace = &res.Trace
	}
	if out.Candidates == nil {
		out.Candidates = []CandidateView{}
	}
	out.Mode = g.cfg.Mode
	out.Success = false
	out.Allocated = false
	out.Outcome = ""
	out.ErrorCode = CodeInternalError
	out.Error = CodeInternalError + ": " + err.Error()

	bypassAttempts.Inc()
	meta := bypassRecord{
		DecisionID: out.DecisionID,
		TaskType:   c.in.TaskType,
		CompanyID:  c.in.CompanyID,
		Mode:       string(g.cfg.Mode),
		Error:      err.Error(),
	}
	if _, aerr := audit.Record(context.WithoutCancel(ctx), g.audit, c.in.ActorID, audit.ActionBypassAttempt, audit.TargetTask, c.in.TaskID, meta); aerr != nil {
		g.log.Errorf("record bypass attempt for %s: %v", c.in.TaskID, aerr)
	}
	g.mon.CaptureException(err, map[string]string{
		"task_id":     c.in.TaskID,
		"decision_id": out.DecisionID,
		"mode":        string(g.cfg.Mode),
	})
	g.log.Errorf("dispatch %s failed: %v", c.in.TaskID, err)
	return out
}

func (g *Gateway) observe(c *call, out Output) {
	result := out.ErrorCode
	if out.Success {
		result = "ok"
	}
	elapsed := time.Since(c.start)
	dispatchTotal.WithLabelValues(string(g.cfg.Mode), result).Inc()
	dispatchLatency.WithLabelValues(string(g.cfg.Mode)).Observe(elapsed.Seconds())
	if out.BusinessOverride {
		businessOverride.WithLabelValues(string(g.cfg.Mode), string(out.Outcome)).Inc()
	}

	now := time.Now().UTC()
	rec := coremetrics.DispatchResult{
		DecisionID:       out.DecisionID,
		TaskID:           c.in.TaskID,
		TaskType:         c.in.TaskType,
		CompanyID:        c.dc.TenantID,
		Mode:             string(g.cfg.Mode),
		PlatformWorker:   out.PlatformSelectedWorker,
		EffectiveWorker:  out.EffectiveWorker,
		Outcome:          string(out.Outcome),
		Error:            out.ErrorCode,
		Success:          out.Success,
		BusinessOverride: out.BusinessOverride,
		Allocated:        out.Allocated,
		Candidates:       len(out.Candidates),
		Duration:         elapsed,
		Time:             now,
	}
	if out.PlatformRecommendation != nil {
		rec.Confidence = out.PlatformRecommendation.ConfidenceScore
	}
	if err := g.sink.RecordDispatchResult([]coremetrics.DispatchResult{rec}); err != nil {
		g.log.Warnf("metrics sink: %v", err)
	}
	if g.bus != nil {
		g.bus.Publish(events.DispatchEvent{
			DecisionID:       out.DecisionID,
			TaskID:           c.in.TaskID,
			TaskType:         c.in.TaskType,
			CompanyID:        c.dc.TenantID,
			Mode:             string(g.cfg.Mode),
			PlatformWorker:   out.PlatformSelectedWorker,
			EffectiveWorker:  out.EffectiveWorker,
			BusinessOverride: out.BusinessOverride,
			Allocated:        out.Allocated,
			Outcome:          string(out.Outcome),
			Error:            out.ErrorCode,
			Time:             now,
		})
	}
}

func (g *Gateway) candidateViews(dc model.DecisionContext, res *model.StrategyResult) []CandidateView {
	if res == nil {
		return []CandidateView{}
	}
	views := make([]CandidateView, 0, len(res.Candidates))
	for _, id := range res.Candidates {
		v := CandidateView{WorkerID: id, Score: res.Scores[id]}
		if w, ok := dc.Worker(id); ok {
			v.Name = w.Context.Name
			v.Skills = append([]string(nil), w.Skills...)
		}
		views = append(views, v)
	}
	return views
}

type allocationRecord struct {
	DecisionID       string `json:"decision_id"`
	TaskType         string `json:"task_type"`
	CompanyID        string `json:"company_id"`
	WorkerID         string `json:"worker_id"`
	PlatformWorkerID string `json:"platform_worker_id"`
	BusinessWorkerID string `json:"business_worker_id,omitempty"`
	Mode             string `json:"mode"`
	BusinessOverride bool   `json:"business_override"`
	Allocated        bool   `json:"allocated"`
	DryRun           bool   `json:"dry_run,omitempty"`
	Capability       string `json:"capability"`
	RejectedReason   string `json:"rejected_reason,omitempty"`
	RejectedCategory string `json:"rejected_category,omitempty"`
}

type bypassRecord struct {
	DecisionID string `json:"decision_id"`
	TaskType   string `json:"task_type"`
	CompanyID  string `json:"company_id"`
	Mode       string `json:"mode"`
	Error      string `json:"error"`
}

func effectiveWorker(mode TakeoverMode, pick, business string) string {
	if mode == ModeEnforced || business == "" {
		return pick
	}
	return business
}

func outcomeOf(mode TakeoverMode, override bool) model.Outcome {
	switch {
	case override && mode == ModeEnforced:
		return model.OutcomePlatformEnforced
	case override:
		return model.OutcomeBusinessOverride
	}
	return model.OutcomePlatformAccepted
}

func workerName(dc model.DecisionContext, id string) string {
	if w, ok := dc.Worker(id); ok && w.Context.Name != "" {
		return w.Context.Name
	}
	return id
}

func normalizeInput(in Input) Input {
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.TaskType = strings.ToLower(strings.TrimSpace(in.TaskType))
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.ActorID = strings.TrimSpace(in.ActorID)
	in.BusinessProvidedWorkerID = strings.TrimSpace(in.BusinessProvidedWorkerID)
	in.RejectedCategory = strings.TrimSpace(in.RejectedCategory)
	return in
}

// placeholderContext describes the request before the task is loaded, so
// early failures still produce a meaningful trace.
func placeholderContext(in Input, version string) model.DecisionContext {
	task := model.TaskModel{
		ID:      in.TaskID,
		Type:    model.ParseTaskType(in.TaskType),
		Context: model.TaskContext{CompanyID: in.CompanyID},
	}
	dc := model.NewDecisionContext(uuid.NewString(), task, nil, version)
	dc.Meta = map[string]any{"actor_id": in.ActorID}
	return dc
}
