package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/orchestration"
)

// DispatchFlowID is the orchestration flow registered by RegisterDispatchFlow.
const DispatchFlowID = "dispatch"

// EventDispatchRequested is the event type consumed by the dispatch flow.
const EventDispatchRequested = "dispatch.requested"

// Payload keys of dispatch events.
const (
	keyTaskID           = "task_id"
	keyTaskType         = "task_type"
	keyCompanyID        = "company_id"
	keyActorID          = "actor_id"
	keyBusinessWorker   = "business_provided_worker_id"
	keyRejectedReason   = "rejected_reason"
	keyRejectedCategory = "rejected_category"
	keyDecisionID       = "decision_id"
	keySuccess          = "success"
)

// DispatchFlow runs gateway dispatches through the orchestration engine.
type DispatchFlow struct {
	engine *orchestration.Engine
	gw     *Gateway
	log    audit.Log

	mu      sync.Mutex
	outputs map[string]*pendingOutput
}

// pendingOutput holds the gateway output of an event while Run waits on it.
type pendingOutput struct {
	out Output
	set bool
}

// RegisterDispatchFlow registers the dispatch flow on engine: a "dispatch"
// step calling the gateway and a "record" step writing the flow state to
// the audit log.
func RegisterDispatchFlow(engine *orchestration.Engine, gw *Gateway, log audit.Log) (*DispatchFlow, error) {
	if engine == nil || gw == nil || log == nil {
		return nil, errors.New("gateway: dispatch flow needs an engine, a gateway and an audit log")
	}
	f := &DispatchFlow{engine: engine, gw: gw, log: log, outputs: make(map[string]*pendingOutput)}
	err := engine.RegisterFlow(DispatchFlowID,
		orchestration.Step{Name: "dispatch", Run: f.dispatchStep},
		orchestration.Step{Name: "record", Run: f.recordStep},
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Run dispatches in through the flow and returns the gateway output of the
// last attempt with the final flow state.
func (f *DispatchFlow) Run(ctx context.Context, in Input) (Output, orchestration.State, error) {
	ev := EventFromInput(in)
	p := &pendingOutput{}
	f.mu.Lock()
	f.outputs[ev.ID] = p
	f.mu.Unlock()

	st, err := f.engine.OnEvent(ctx, DispatchFlowID, ev)

	f.mu.Lock()
	delete(f.outputs, ev.ID)
	out, ok := p.out, p.set
	f.mu.Unlock()
	if !ok {
		out = Output{Candidates: []CandidateView{}, Mode: f.gw.Mode(), ErrorCode: CodeInternalError, Error: CodeInternalError + ": flow did not dispatch"}
		if err != nil {
			out.Error = CodeInternalError + ": " + err.Error()
		}
	}
	return out, st, err
}

func (f *DispatchFlow) dispatchStep(ctx context.Context, ev orchestration.Event, st orchestration.State) (orchestration.State, error) {
	in := InputFromEvent(ev)
	out := f.gw.Dispatch(ctx, in)
	// Attempts abandoned on timeout have a cancelled context and must not
	// overwrite a live retry or outlive Run.
	f.mu.Lock()
	if p, waiting := f.outputs[ev.ID]; waiting && ctx.Err() == nil {
		p.out, p.set = out, true
	}
	f.mu.Unlock()

	st.Set(keyDecisionID, out.DecisionID)
	st.Set(keySuccess, out.Success)
	if out.Success {
		st.Set("effective_worker", out.EffectiveWorker)
		st.Set("outcome", string(out.Outcome))
		return st, nil
	}
	err := fmt.Errorf("dispatch %s: %s", in.TaskID, out.Error)
	switch out.ErrorCode {
	case CodeNoCandidates, CodeInternalError:
		return st, err
	default:
		return st, orchestration.Permanent(err)
	}
}

type flowRecord struct {
	FlowID     string         `json:"flow_id"`
	EventID    string         `json:"event_id"`
	Step       string         `json:"step"`
	Attempts   int            `json:"attempts"`
	DecisionID string         `json:"decision_id"`
	Data       map[string]any `json:"data,omitempty"`
}

func (f *DispatchFlow) recordStep(ctx context.Context, ev orchestration.Event, st orchestration.State) (orchestration.State, error) {
	in := InputFromEvent(ev)
	decisionID, _ := st.Data[keyDecisionID].(string)
	_, err := audit.Record(ctx, f.log, in.ActorID, audit.ActionOrchestrationDispatch, audit.TargetTask, in.TaskID, flowRecord{
		FlowID:     st.FlowID,
		EventID:    st.EventID,
		Step:       st.Step,
		Attempts:   st.Attempts,
		DecisionID: decisionID,
		Data:       st.Data,
	})
	return st, err
}

// EventFromInput wraps in into a dispatch event with a fresh id.
func EventFromInput(in Input) orchestration.Event {
	return orchestration.Event{
		ID:   uuid.NewString(),
		Type: EventDispatchRequested,
		Payload: map[string]any{
			keyTaskID:           in.TaskID,
			keyTaskType:         in.TaskType,
			keyCompanyID:        in.CompanyID,
			keyActorID:          in.ActorID,
			keyBusinessWorker:   in.BusinessProvidedWorkerID,
			keyRejectedReason:   in.RejectedReason,
			keyRejectedCategory: in.RejectedCategory,
		},
	}
}

// InputFromEvent reads a dispatch input from an event payload. Missing or
// non-string values are left empty.
func InputFromEvent(ev orchestration.Event) Input {
	str := func(k string) string {
		s, _ := ev.Payload[k].(string)
		return s
	}
	return Input{
		TaskID:                   str(keyTaskID),
		TaskType:                 str(keyTaskType),
		CompanyID:                str(keyCompanyID),
		ActorID:                  str(keyActorID),
		BusinessProvidedWorkerID: str(keyBusinessWorker),
		RejectedReason:           str(keyRejectedReason),
		RejectedCategory:         str(keyRejectedCategory),
	}
}
